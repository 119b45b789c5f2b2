package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielledeleo/mdtest"
)

func newListCmd(a *app) *cobra.Command {
	var sel selection
	cmd := &cobra.Command{
		Use:   "list [path ...]",
		Short: "List the tests of documents without running them",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := expandPaths(args)
			if err != nil {
				return usageError(err)
			}
			filter := sel.filter()
			failed := false
			for _, path := range paths {
				tests, err := mdtest.CollectFile(path, a.cfg.CollectOptions()...)
				if err != nil {
					fmt.Fprintf(a.stderr, "%v\n", err)
					failed = true
					continue
				}
				for i := range tests {
					t := &tests[i]
					if filter != nil && !filter(t) {
						continue
					}
					fmt.Fprintln(a.stdout, describe(t))
					if t.Err != nil {
						fmt.Fprintf(a.stdout, "    error: %v\n", t.Err)
					}
				}
			}
			if failed {
				return &exitError{code: exitFailed}
			}
			return nil
		},
	}
	sel.addFlags(cmd.Flags())
	return cmd
}

// describe is the one-line listing of a test:
//
//	docs/guide.md:12: test_div [xfail(raises=ZeroDivisionError)] (2 fragments, subprocess)
func describe(t *mdtest.Test) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d: %s", t.Path, t.Line(), t.Name)
	if len(t.Marks) > 0 {
		raws := make([]string, len(t.Marks))
		for i, m := range t.Marks {
			raws[i] = m.Raw
		}
		fmt.Fprintf(&b, " [%s]", strings.Join(raws, ", "))
	}
	var notes []string
	if n := len(t.Fragments); n > 1 {
		notes = append(notes, fmt.Sprintf("%d fragments", n))
	}
	if n := len(t.Cases); n > 0 {
		notes = append(notes, fmt.Sprintf("%d cases", n))
	}
	if len(t.Fixtures) > 0 {
		notes = append(notes, "fixtures: "+strings.Join(t.Fixtures, ", "))
	}
	if t.Isolated {
		notes = append(notes, "subprocess")
	}
	if len(notes) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(notes, "; "))
	}
	return b.String()
}

func newSourceCmd(a *app) *cobra.Command {
	var numbered bool
	cmd := &cobra.Command{
		Use:   "source path test",
		Short: "Print the program built from the fragments of a test",
		Long: `Print the program built from the fragments of a test. Line N of the program
is line N of the document; lines outside the test's fragments are blank.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, name := args[0], args[1]
			tests, err := mdtest.CollectFile(path, a.cfg.CollectOptions()...)
			if err != nil {
				return usageError(err)
			}
			for i := range tests {
				t := &tests[i]
				if t.Name != name {
					continue
				}
				writeSource(a, t.Source, numbered)
				return nil
			}
			return usageError(fmt.Errorf("%s: no test named %q", path, name))
		},
	}
	cmd.Flags().BoolVarP(&numbered, "numbered", "n", false, "prefix every line with its line number")
	return cmd
}

func writeSource(a *app, src *mdtest.Source, numbered bool) {
	if !numbered {
		fmt.Fprintln(a.stdout, src.Text)
		return
	}
	lines := strings.Split(src.Text, "\n")
	width := len(fmt.Sprint(len(lines)))
	for i, line := range lines {
		fmt.Fprintf(a.stdout, "%*d  %s\n", width, i+1, line)
	}
}
