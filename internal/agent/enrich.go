package agent

import (
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// writeCommands are bash commands whose non-flag path arguments are written
// to rather than merely read, used to backfill file_modified on an
// observation when the extractor's own narrative omits it.
var writeCommands = map[string]bool{
	"rm": true, "cp": true, "mv": true, "mkdir": true, "touch": true,
	"tee": true, "sed": true, "dd": true,
}

// enrichFromBashCommand parses a Bash tool's command string and returns the
// set of paths it wrote to, for a cwd-joined observation when the hook's
// tool_name is "Bash" and the extractor's own file_modified list came back
// empty. Parse failures return nil rather than an error: enrichment is a
// best-effort supplement to the LLM's own extraction, never a requirement.
func enrichFromBashCommand(command, cwd string) []string {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash), syntax.KeepComments(false))
	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil
	}

	var paths []string
	syntax.Walk(file, func(node syntax.Node) bool {
		call, ok := node.(*syntax.CallExpr)
		if !ok || len(call.Args) == 0 {
			return true
		}
		name := wordToString(call.Args[0])
		if !writeCommands[name] {
			return true
		}
		for _, arg := range call.Args[1:] {
			for _, p := range extractBashPaths(name, wordToString(arg)) {
				paths = append(paths, resolveAgainstCwd(p, cwd))
			}
		}
		return true
	})
	return dedupeStrings(paths)
}

// extractBashPaths filters a single argument down to zero-or-one path
// candidates, skipping flags and any argument that contains a variable or
// command substitution. Other arguments (including operand syntax such as
// dd's of=FILE) are returned as they are.
func extractBashPaths(cmdName, arg string) []string {
	if arg == "" || strings.HasPrefix(arg, "-") {
		return nil
	}
	if strings.Contains(arg, "$(") || strings.Contains(arg, "$") {
		return nil
	}
	return []string{arg}
}

func resolveAgainstCwd(path, cwd string) string {
	if filepath.IsAbs(path) || cwd == "" {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(cwd, path))
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// wordToString converts a syntax.Word to its literal text, resolving quoted
// segments and leaving variable/command substitutions as placeholders so
// enrichment never silently treats dynamic content as a concrete path.
func wordToString(word *syntax.Word) string {
	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, qp := range p.Parts {
				if lit, ok := qp.(*syntax.Lit); ok {
					sb.WriteString(lit.Value)
				}
			}
		case *syntax.ParamExp:
			sb.WriteString("$" + p.Param.Value)
		case *syntax.CmdSubst:
			sb.WriteString("$()")
		}
	}
	return sb.String()
}
