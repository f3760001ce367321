package gitcmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/ManiVaultStudio/DevBundle/internal/domain/safety"
)

// Status is the parsed form of `git status --porcelain=v2 -b`.
type Status struct {
	Branch    string
	Head      string
	Upstream  string
	Ahead     int
	Behind    int
	Untracked int
	Staged    int
	Unstaged  int
	Unmerged  int
}

func (s Status) Dirty() bool {
	return s.Untracked+s.Staged+s.Unstaged+s.Unmerged > 0
}

// Summary describes the uncommitted changes, e.g. "1 staged, 2 untracked".
func (s Status) Summary() string {
	var parts []string
	add := func(n int, label string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, label))
		}
	}
	add(s.Staged, "staged")
	add(s.Unstaged, "modified")
	add(s.Unmerged, "unmerged")
	add(s.Untracked, "untracked")
	if len(parts) == 0 {
		return "clean"
	}
	return strings.Join(parts, ", ")
}

func StatusPorcelainV2(ctx context.Context, dir string) (Status, error) {
	res, err := Run(ctx, []string{"status", "--porcelain=v2", "-b"}, Options{Dir: dir})
	if err != nil {
		return Status{}, err
	}
	return parseStatusPorcelainV2(res.Stdout), nil
}

func parseStatusPorcelainV2(out string) Status {
	var st Status
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "# ") {
			fields := strings.Fields(line)
			if len(fields) < 3 {
				continue
			}
			switch fields[1] {
			case "branch.oid":
				if fields[2] != "(initial)" {
					st.Head = shortSHA(fields[2])
				}
			case "branch.head":
				if fields[2] != "(detached)" && fields[2] != "(unknown)" {
					st.Branch = fields[2]
				}
			case "branch.upstream":
				st.Upstream = fields[2]
			case "branch.ab":
				for _, field := range fields[2:] {
					var n int
					if _, err := fmt.Sscanf(field[1:], "%d", &n); err != nil {
						continue
					}
					if strings.HasPrefix(field, "+") {
						st.Ahead = n
					} else if strings.HasPrefix(field, "-") {
						st.Behind = n
					}
				}
			}
			continue
		}

		switch line[0] {
		case '?':
			st.Untracked++
		case 'u':
			st.Unmerged++
		case '1', '2':
			fields := strings.Fields(line)
			if len(fields) < 2 || len(fields[1]) < 2 {
				continue
			}
			xy := fields[1]
			if xy[0] != '.' {
				st.Staged++
			}
			if xy[1] != '.' {
				st.Unstaged++
			}
		}
	}
	return st
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// Inspector reports working tree state through git status.
type Inspector struct{}

func (Inspector) Inspect(ctx context.Context, dir string) (safety.TreeState, error) {
	st, err := StatusPorcelainV2(ctx, dir)
	if err != nil {
		return safety.TreeState{}, err
	}
	return safety.TreeState{Dirty: st.Dirty(), Summary: st.Summary()}, nil
}
