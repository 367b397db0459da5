package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/SL-LAIDLAW/metallaxis/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and edit metallaxis settings",
		Long: `Print the effective settings, or read and write single keys of the config
file (~/.metallaxis.yaml unless --config is given). Values written with
"set" are checked before the file is touched.`,
		Example: `  metallaxis config
  metallaxis config set ingest.chunk_size 10000
  metallaxis config set annotate.max_retries 3
  metallaxis config get store.compression`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showSettings(cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkKey(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), viper.Get(args[0]))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write one setting to the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setSetting(cmd.OutOrStdout(), args[0], args[1])
		},
	})

	return cmd
}

func checkKey(key string) error {
	if !config.IsKey(key) {
		return &usageError{fmt.Errorf("unknown key %q, expected one of: %s", key, strings.Join(config.Keys, ", "))}
	}
	return nil
}

// showSettings prints every known key as one yaml mapping, in config.Keys
// order.
func showSettings(w io.Writer) error {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, key := range config.Keys {
		v := viper.Get(key)
		if d, ok := v.(time.Duration); ok {
			v = d.String()
		}
		var val yaml.Node
		if err := val.Encode(v); err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, &val)
	}

	src := viper.ConfigFileUsed()
	if src == "" {
		src = "none, defaults and environment only"
	}
	fmt.Fprintf(w, "# source: %s\n", src)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// setSetting stores value under key and rewrites the config file. The value
// is decoded as a yaml scalar, so "10" is an int and "true" a bool.
func setSetting(w io.Writer, key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	var typed any
	if err := yaml.Unmarshal([]byte(value), &typed); err != nil || typed == nil {
		typed = value
	}
	viper.Set(key, typed)

	if _, err := config.Load(viper.GetViper()); err != nil {
		return &usageError{err}
	}

	path := viper.ConfigFileUsed()
	if path == "" {
		var err error
		if path, err = config.ConfigPath(); err != nil {
			return err
		}
	}
	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Fprintf(w, "%s: %v (%s)\n", key, typed, path)
	return nil
}
