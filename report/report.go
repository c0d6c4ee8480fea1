// Package report renders a resolution as a markdown document for
// curator review.
package report

import (
	"strings"

	"xdao.co/permtrace/address"
	"xdao.co/permtrace/resolver"
	"xdao.co/permtrace/tagging"
)

// Options controls report rendering.
type Options struct {
	// Title heads the document; empty uses a default.
	Title string

	// Tags, when set, decorate addresses with curator tags.
	Tags *tagging.Set
}

// Render produces a deterministic markdown report. Ordering follows
// the resolution (overrides-document order); no wall-clock input.
func Render(res *resolver.Resolution, opts Options) []byte {
	title := opts.Title
	if title == "" {
		title = "Permission Resolution Report"
	}

	var sb strings.Builder
	sb.WriteString("# ")
	sb.WriteString(title)
	sb.WriteString("\n\n")
	sb.WriteString("Overrides version: `")
	sb.WriteString(res.OverridesVersion)
	sb.WriteString("` · Discovered hash: `")
	sb.WriteString(res.DiscoveredHash)
	sb.WriteString("`\n")

	for _, c := range res.Contracts {
		sb.WriteString("\n## ")
		sb.WriteString(addrLabel(c.Address, opts.Tags))
		sb.WriteString("\n")
		for _, f := range c.Functions {
			writeFunction(&sb, f, opts.Tags)
		}
	}

	return []byte(sb.String())
}

func writeFunction(sb *strings.Builder, f resolver.ResolvedFunction, tags *tagging.Set) {
	sb.WriteString("\n### `")
	sb.WriteString(f.FunctionName)
	sb.WriteString("`\n\n")

	sb.WriteString("Direct owners:\n")
	if len(f.DirectOwners) == 0 {
		sb.WriteString("- (none)\n")
	}
	for _, o := range f.DirectOwners {
		sb.WriteString("- ")
		if o.IsResolved {
			sb.WriteString(addrLabel(o.Address, tags))
			sb.WriteString(" (")
			sb.WriteString(string(o.PermissionType))
			if o.Role != "" {
				sb.WriteString(", role ")
				sb.WriteString(o.Role)
			}
			sb.WriteString(")")
		} else {
			sb.WriteString(resolver.PlaceholderUnresolved)
			sb.WriteString(" via `")
			sb.WriteString(o.Source.Path)
			sb.WriteString("`")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nUltimate owners:\n")
	if len(f.UltimateOwners) == 0 {
		sb.WriteString("- (none)\n")
	}
	for _, u := range f.UltimateOwners {
		sb.WriteString("- ")
		sb.WriteString(addrLabel(u.Address, tags))
		sb.WriteString(" [")
		sb.WriteString(string(u.Type))
		sb.WriteString("]")
		if len(u.Via) > 0 {
			sb.WriteString(" via ")
			for i, v := range u.Via {
				if i > 0 {
					sb.WriteString(" → ")
				}
				sb.WriteString(v.Address.String())
			}
		}
		sb.WriteString(", delay ")
		sb.WriteString(resolver.FormatDelay(u.CumulativeDelay))
		sb.WriteString("\n")
	}

	if len(f.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, w := range f.Warnings {
			sb.WriteString("- ")
			sb.WriteString(w)
			sb.WriteString("\n")
		}
	}
}

func addrLabel(a address.Address, tags *tagging.Set) string {
	label := "`" + a.String() + "`"
	if tags != nil {
		if t := tags.TagsFor(a); len(t) > 0 {
			label += " (" + strings.Join(t, ", ") + ")"
		}
	}
	return label
}
