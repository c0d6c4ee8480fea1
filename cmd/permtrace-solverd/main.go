package main

import (
	"flag"
	"net"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"xdao.co/permtrace/solver"
	"xdao.co/permtrace/solver/grpcsolver"
)

var log = logrus.New()

func main() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	fs := flag.NewFlagSet("permtrace-solverd", flag.ExitOnError)
	listen := fs.String("listen", "127.0.0.1:7787", "listen address")
	command := fs.String("command", "", "external solver command, e.g. \"clingo --mode=gringo\"")
	_ = fs.Parse(os.Args[1:])

	if *command == "" {
		log.Error("permtrace-solverd requires --command")
		os.Exit(2)
	}
	backend := &solver.ExecBackend{Command: strings.Fields(*command)}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
	defer lis.Close()

	s := grpc.NewServer()
	grpcsolver.RegisterSolverServer(s, &grpcsolver.Server{Backend: backend})

	log.WithFields(logrus.Fields{
		"addr":    lis.Addr().String(),
		"command": *command,
	}).Info("permtrace-solverd listening")
	if err := s.Serve(lis); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
