package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mind-engage/mindengage-ilq/internal/tag"
)

type parsedTag struct {
	Raw        string            `yaml:"raw"`
	Offset     int               `yaml:"offset"`
	IDs        []int64           `yaml:"ids,omitempty"`
	InvalidIDs []string          `yaml:"invalid_ids,omitempty"`
	Options    map[string]string `yaml:"options,omitempty"`
	Marks      *int              `yaml:"marks,omitempty"`
	Flags      *int              `yaml:"flags,omitempty"`
	ReadOnly   *bool             `yaml:"readonly,omitempty"`
	Error      string            `yaml:"error,omitempty"`
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [file]",
		Short: "List the {ILQ:...} tags in a file (or stdin) as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			out := []parsedTag{}
			for _, m := range tag.Scan(text) {
				out = append(out, describeTag(m))
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(out); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func describeTag(m tag.Match) parsedTag {
	pt := parsedTag{Raw: m.Raw, Offset: m.Start}
	opts, err := tag.Parse(m.Raw)
	if err != nil {
		pt.Error = err.Error()
		return pt
	}
	pt.Options = map[string]string{}
	for _, k := range opts.Keys() {
		v, _ := opts.Get(k)
		pt.Options[k] = v.String()
	}
	if mk, ok := opts.Marks(); ok {
		n := int(mk)
		pt.Marks = &n
	}
	if fl, ok := opts.Flags(); ok {
		n := int(fl)
		pt.Flags = &n
	}
	if ro, ok := opts.ReadOnly(); ok {
		pt.ReadOnly = &ro
	}
	pt.IDs, pt.InvalidIDs = opts.IDs()
	return pt
}
