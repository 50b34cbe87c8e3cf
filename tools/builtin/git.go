package builtin

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/tools"
)

const previewLimit = 20

func openWorktree(dir string) (*git.Repository, *git.Worktree, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil, fmt.Errorf("not a git repository: %s", dir)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open worktree: %w", err)
	}
	return repo, wt, nil
}

// statusLines renders a status as sorted porcelain-style lines. When
// stagedOnly is set, only entries with staged changes are included.
func statusLines(status git.Status, stagedOnly bool) []string {
	paths := make([]string, 0, len(status))
	for p := range status {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	var lines []string
	for _, p := range paths {
		fs := status[p]
		if stagedOnly && !staged(fs) {
			continue
		}
		lines = append(lines, fmt.Sprintf("%c%c %s", fs.Staging, fs.Worktree, p))
	}
	return lines
}

func staged(fs *git.FileStatus) bool {
	return fs.Staging != git.Unmodified && fs.Staging != git.Untracked
}

func capped(lines []string) string {
	if len(lines) <= previewLimit {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[:previewLimit], "\n") +
		fmt.Sprintf("\n... and %d more files", len(lines)-previewLimit)
}

func gitStatus() tools.Spec {
	return tools.Spec{
		Name:        "git_status",
		Description: "Show the current branch and the status of changed files in the git repository containing the working directory.",
		SideEffect:  protocol.ReadOnly,
		Handler: func(_ context.Context, call tools.Call) (tools.Result, error) {
			repo, wt, err := openWorktree(call.Dir)
			if err != nil {
				return tools.Result{}, err
			}
			status, err := wt.Status()
			if err != nil {
				return tools.Result{}, fmt.Errorf("git status failed: %w", err)
			}

			var b strings.Builder
			if head, err := repo.Head(); err == nil {
				if head.Name().IsBranch() {
					fmt.Fprintf(&b, "On branch %s\n", head.Name().Short())
				} else {
					fmt.Fprintf(&b, "HEAD detached at %s\n", head.Hash().String()[:7])
				}
			} else {
				b.WriteString("No commits yet\n")
			}

			lines := statusLines(status, false)
			if len(lines) == 0 {
				b.WriteString("Working tree clean")
			} else {
				b.WriteString(strings.Join(lines, "\n"))
			}
			return tools.Result{Content: b.String()}, nil
		},
	}
}

// addTargets splits the files argument into worktree-relative paths.
// A lone "." selects every change.
func addTargets(wt *git.Worktree, dir, files string) (all bool, targets []string, err error) {
	fields := strings.Fields(files)
	if len(fields) == 0 {
		return false, nil, errors.New("no files given")
	}
	if len(fields) == 1 && fields[0] == "." && dir == wt.Filesystem.Root() {
		return true, nil, nil
	}
	for _, f := range fields {
		rel, err := filepath.Rel(wt.Filesystem.Root(), resolve(dir, f))
		if err != nil || strings.HasPrefix(rel, "..") {
			return false, nil, fmt.Errorf("%s is outside the repository", f)
		}
		targets = append(targets, filepath.ToSlash(rel))
	}
	return false, targets, nil
}

func matchesTarget(p string, targets []string) bool {
	for _, t := range targets {
		if t == "." || p == t || strings.HasPrefix(p, t+"/") {
			return true
		}
		if ok, _ := filepath.Match(t, p); ok {
			return true
		}
	}
	return false
}

func gitAdd() tools.Spec {
	return tools.Spec{
		Name:        "git_add",
		Description: "Stage files for commit. files is a space-separated list of paths or glob patterns, or \".\" for every change.",
		Schema: tools.NewSchema().
			String("files", "Paths or patterns to stage, or \".\" for all changes.", true).
			Build(),
		SideEffect: protocol.Mutating,
		Preview: func(_ context.Context, call tools.Call) (string, error) {
			_, wt, err := openWorktree(call.Dir)
			if err != nil {
				return "", err
			}
			status, err := wt.Status()
			if err != nil {
				return "", err
			}
			all, targets, err := addTargets(wt, call.Dir, call.StringArg("files"))
			if err != nil {
				return "", err
			}

			var lines []string
			for _, line := range statusLines(status, false) {
				if all || matchesTarget(line[3:], targets) {
					lines = append(lines, line)
				}
			}
			if len(lines) == 0 {
				return "No matching changes", nil
			}
			return capped(lines), nil
		},
		Handler: func(_ context.Context, call tools.Call) (tools.Result, error) {
			_, wt, err := openWorktree(call.Dir)
			if err != nil {
				return tools.Result{}, err
			}
			status, err := wt.Status()
			if err != nil {
				return tools.Result{}, fmt.Errorf("git status failed: %w", err)
			}
			if status.IsClean() {
				return tools.Result{Content: "No changes to stage"}, nil
			}

			all, targets, err := addTargets(wt, call.Dir, call.StringArg("files"))
			if err != nil {
				return tools.Result{}, err
			}
			if all {
				err = wt.AddWithOptions(&git.AddOptions{All: true})
			} else {
				for _, t := range targets {
					if strings.ContainsAny(t, "*?[") {
						err = wt.AddGlob(t)
					} else {
						_, err = wt.Add(t)
					}
					if err != nil {
						break
					}
				}
			}
			if err != nil {
				return tools.Result{}, fmt.Errorf("git add failed: %w", err)
			}

			status, err = wt.Status()
			if err != nil {
				return tools.Result{}, fmt.Errorf("git status failed: %w", err)
			}
			count := len(statusLines(status, true))
			return tools.Result{Content: fmt.Sprintf("Successfully staged %d file(s)", count)}, nil
		},
	}
}

func gitCommit() tools.Spec {
	return tools.Spec{
		Name:        "git_commit",
		Description: "Commit the staged changes with the given message.",
		Schema: tools.NewSchema().
			String("message", "Commit message.", true).
			Build(),
		SideEffect: protocol.Mutating,
		Preview: func(_ context.Context, call tools.Call) (string, error) {
			_, wt, err := openWorktree(call.Dir)
			if err != nil {
				return "", err
			}
			status, err := wt.Status()
			if err != nil {
				return "", err
			}
			lines := statusLines(status, true)
			if len(lines) == 0 {
				return "Message: " + call.StringArg("message") + "\n\nNo staged changes", nil
			}
			return "Message: " + call.StringArg("message") + "\n\nStaged changes:\n\n" + capped(lines), nil
		},
		Handler: func(_ context.Context, call tools.Call) (tools.Result, error) {
			repo, wt, err := openWorktree(call.Dir)
			if err != nil {
				return tools.Result{}, err
			}
			status, err := wt.Status()
			if err != nil {
				return tools.Result{}, fmt.Errorf("git status failed: %w", err)
			}
			if len(statusLines(status, true)) == 0 {
				return tools.Result{Content: "No staged changes to commit"}, nil
			}

			message := call.StringArg("message")
			hash, err := wt.Commit(message, &git.CommitOptions{Author: signature(repo)})
			if err != nil {
				return tools.Result{}, fmt.Errorf("git commit failed: %w", err)
			}

			subject, _, _ := strings.Cut(message, "\n")
			return tools.Result{Content: fmt.Sprintf("Successfully created commit %s: %s", hash.String()[:7], subject)}, nil
		},
	}
}

// signature builds the commit author from the repository's effective
// user configuration.
func signature(repo *git.Repository) *object.Signature {
	sig := &object.Signature{Name: "terminus", Email: "terminus@localhost", When: time.Now()}
	cfg, err := repo.ConfigScoped(gitconfig.GlobalScope)
	if err != nil {
		return sig
	}
	if cfg.User.Name != "" {
		sig.Name = cfg.User.Name
	}
	if cfg.User.Email != "" {
		sig.Email = cfg.User.Email
	}
	return sig
}

func quickCommit() tools.Spec {
	return tools.Spec{
		Name:        "quick_commit",
		Description: "Commit in one step with the given message. With add_all, every change (including untracked files) is staged first.",
		Schema: tools.NewSchema().
			String("message", "Commit message.", true).
			Boolean("add_all", "Stage all changes before committing (default: false).", false).
			Default("add_all", false).
			Build(),
		SideEffect: protocol.Mutating,
		Preview: func(_ context.Context, call tools.Call) (string, error) {
			_, wt, err := openWorktree(call.Dir)
			if err != nil {
				return "", err
			}
			status, err := wt.Status()
			if err != nil {
				return "", err
			}

			addAll := call.BoolArg("add_all", false)
			lines := statusLines(status, !addAll)
			heading := "Staged changes:"
			if addAll {
				heading = "Changes to stage and commit:"
			}
			message := "Message: " + call.StringArg("message")
			if len(lines) == 0 {
				return message + "\n\nNothing to commit", nil
			}
			return message + "\n\n" + heading + "\n\n" + capped(lines), nil
		},
		Handler: func(_ context.Context, call tools.Call) (tools.Result, error) {
			message := strings.TrimSpace(call.StringArg("message"))
			if message == "" {
				return tools.Result{}, errors.New("commit message cannot be empty")
			}

			repo, wt, err := openWorktree(call.Dir)
			if err != nil {
				return tools.Result{}, err
			}

			var steps []string
			if call.BoolArg("add_all", false) {
				if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
					return tools.Result{}, fmt.Errorf("git add failed: %w", err)
				}
				steps = append(steps, "staged all changes")
			}

			status, err := wt.Status()
			if err != nil {
				return tools.Result{}, fmt.Errorf("git status failed: %w", err)
			}
			committed := len(statusLines(status, true))
			if committed == 0 {
				if status.IsClean() {
					return tools.Result{Content: "Nothing to commit, working tree clean"}, nil
				}
				return tools.Result{Content: "No staged changes to commit; set add_all to stage every change"}, nil
			}

			hash, err := wt.Commit(message, &git.CommitOptions{Author: signature(repo)})
			if err != nil {
				return tools.Result{}, fmt.Errorf("git commit failed: %w", err)
			}
			steps = append(steps, fmt.Sprintf("committed %d file(s)", committed))

			subject, _, _ := strings.Cut(message, "\n")
			return tools.Result{Content: fmt.Sprintf("Created commit %s: %s\n(%s)",
				hash.String()[:7], subject, strings.Join(steps, ", "))}, nil
		},
	}
}
