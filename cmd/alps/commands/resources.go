package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matchmore/alps-go/pkg/model"
)

// ResourceOptions holds flags shared by subscription and publication
// commands.
type ResourceOptions struct {
	*RootOptions
	DeviceID   string
	Topic      string
	Range      float64
	Duration   int64
	Selector   string
	Pushers    []string
	Properties []string
}

func (o *ResourceOptions) duration() *int64 {
	if o.Duration <= 0 {
		return nil
	}
	return model.Seconds(o.Duration)
}

func (o *ResourceOptions) addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.DeviceID, "device", "", "device ID (default: main device)")
	cmd.Flags().StringVar(&o.Topic, "topic", "", "topic (required)")
	_ = cmd.MarkFlagRequired("topic")
	cmd.Flags().Float64Var(&o.Range, "range", 100, "range in meters")
	cmd.Flags().Int64Var(&o.Duration, "duration", 0, "lifetime in seconds (0: never expires)")
}

// NewSubscriptionCommand creates the sub command group.
func NewSubscriptionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResourceOptions{RootOptions: rootOpts}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a subscription",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer closeSession(s, newLogger(s.Config(), os.Stderr))

			sub, err := s.CreateSubscription(cmd.Context(), opts.DeviceID, model.Subscription{
				Topic:    opts.Topic,
				Selector: opts.Selector,
				Range:    opts.Range,
				Duration: opts.duration(),
				Pushers:  opts.Pushers,
			})
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts.Format, sub, func(w io.Writer) {
				formatSubscription(w, sub)
			})
		},
	}
	opts.addCommonFlags(create)
	create.Flags().StringVar(&opts.Selector, "selector", "", "selector over publication properties")
	create.Flags().StringSliceVar(&opts.Pushers, "pusher", nil, "delivery channel hints")

	list := &cobra.Command{
		Use:   "list",
		Short: "List unexpired subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer closeSession(s, newLogger(s.Config(), os.Stderr))

			subs := s.ActiveSubscriptions(cmd.Context())
			return printResult(cmd.OutOrStdout(), opts.Format, subs, func(w io.Writer) {
				for _, sub := range subs {
					formatSubscription(w, sub)
				}
			})
		},
	}

	cmd := &cobra.Command{
		Use:     "sub",
		Aliases: []string{"subscription"},
		Short:   "Create and list subscriptions",
	}
	cmd.AddCommand(create, list)
	return cmd
}

// NewPublicationCommand creates the pub command group.
func NewPublicationCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResourceOptions{RootOptions: rootOpts}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a publication",
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := parseProperties(opts.Properties)
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer closeSession(s, newLogger(s.Config(), os.Stderr))

			pub, err := s.CreatePublication(cmd.Context(), opts.DeviceID, model.Publication{
				Topic:      opts.Topic,
				Range:      opts.Range,
				Duration:   opts.duration(),
				Properties: props,
			})
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts.Format, pub, func(w io.Writer) {
				formatPublication(w, pub)
			})
		},
	}
	opts.addCommonFlags(create)
	create.Flags().StringSliceVar(&opts.Properties, "prop", nil, "property key=value (numbers and booleans are typed)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List unexpired publications",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer closeSession(s, newLogger(s.Config(), os.Stderr))

			pubs := s.ActivePublications(cmd.Context())
			return printResult(cmd.OutOrStdout(), opts.Format, pubs, func(w io.Writer) {
				for _, pub := range pubs {
					formatPublication(w, pub)
				}
			})
		},
	}

	cmd := &cobra.Command{
		Use:     "pub",
		Aliases: []string{"publication"},
		Short:   "Create and list publications",
	}
	cmd.AddCommand(create, list)
	return cmd
}

// parseProperties turns key=value pairs into a property map.
func parseProperties(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	props := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: property %q is not key=value", model.ErrValidation, p)
		}
		switch {
		case v == "true" || v == "false":
			props[k] = v == "true"
		default:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				props[k] = f
			} else {
				props[k] = v
			}
		}
	}
	return props, nil
}

// NewMatchesCommand creates the matches command.
func NewMatchesCommand(rootOpts *RootOptions) *cobra.Command {
	var deviceID string
	cmd := &cobra.Command{
		Use:   "matches",
		Short: "Print the current matches of a device",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer closeSession(s, newLogger(s.Config(), os.Stderr))

			matches, err := s.GetMatches(cmd.Context(), deviceID)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), rootOpts.Format, matches, func(w io.Writer) {
				for _, m := range matches {
					formatMatch(w, m)
				}
			})
		},
	}
	cmd.Flags().StringVar(&deviceID, "device", "", "device ID (default: main device)")
	return cmd
}
