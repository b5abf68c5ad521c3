package main

import (
	"fmt"

	"github.com/caldog20/overlaymgr/artifact"
	"github.com/spf13/cobra"
)

func newPublishCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "publish-dns",
		Short: "Write the DNS hosts file once and signal the resolver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			res, err := newPublisher(e).Publish(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "wrote %s (%d entries, %d bytes, changed: %t)\n", res.Path, res.Entries, res.Size, res.Changed)
			if res.Diff != "" {
				fmt.Fprintln(out, res.Diff)
			}
			if res.ReloadErr != nil {
				fmt.Fprintf(out, "warning: resolver not reloaded: %v\n", res.ReloadErr)
			}
			return nil
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the network status document served on /data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			status, err := artifact.Status(cmd.Context(), e.store, e.conf.BaseDomain)
			if err != nil {
				return err
			}
			body, err := status.MarshalPretty()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return err
		},
	}
}
