package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"wecomrelay/pkg/event"
	"wecomrelay/pkg/formatter"
	"wecomrelay/pkg/wecom"
)

func newPreviewCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "preview [file]",
		Short: "Print the WeCom envelope an inbound event would produce",
		Long:  "Reads an inbound event from a file (or stdin when the file is omitted or \"-\") and prints the envelope without sending it.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			var raw []byte
			if len(args) == 0 || args[0] == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read event: %w", err)
			}

			ev, err := event.Parse(raw)
			if err != nil {
				return err
			}
			msg := formatter.Format(ev)
			env := wecom.NewEnvelope(msg, cfg.WeCom.MentionedList)

			out, err := json.MarshalIndent(env, "", "  ")
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, string(out))
			fmt.Fprintf(w, "msgtype=%s content_bytes=%d\n", env.MsgType, len(env.Content()))
			return nil
		},
	}
}
