package cmd

import (
	"context"
	"fmt"
	"io/ioutil"

	log "github.com/inconshreveable/log15"
	"github.com/puppetlabs/relay-notify/pkg/notice"
	"github.com/puppetlabs/relay-notify/pkg/notify"
	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v3"
)

// NoticeDocument is the file form of a single notice accepted by the emit
// command.
type NoticeDocument struct {
	Level string `yaml:"level"`
	Error struct {
		Type    string `yaml:"type"`
		Message string `yaml:"message"`
	} `yaml:"error"`
	Params  map[string]interface{} `yaml:"params"`
	Session map[string]interface{} `yaml:"session"`
}

func (nd *NoticeDocument) Event() notice.Event {
	typ := nd.Error.Type
	if typ == "" {
		typ = "error"
	}

	return notice.Event{
		Level:   nd.Level,
		Body:    &notice.Error{Type: typ, Message: nd.Error.Message},
		Params:  nd.Params,
		Session: nd.Session,
	}
}

func readNoticeDocument(path string) (*NoticeDocument, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("emit: cannot read notice file %q: %+v", path, err)
	}

	nd := &NoticeDocument{}
	if err := yaml.Unmarshal(b, nd); err != nil {
		return nil, fmt.Errorf("emit: cannot parse notice file %q: %+v", path, err)
	}

	return nd, nil
}

func NewEmitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "emit",
		Short:                 "Report a single notice and wait for its outcome",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			message, _ := cmd.Flags().GetString("message")
			typ, _ := cmd.Flags().GetString("type")
			level, _ := cmd.Flags().GetString("level")
			params, _ := cmd.Flags().GetStringToString("param")

			nd := &NoticeDocument{}
			if file != "" {
				var err error
				if nd, err = readNoticeDocument(file); err != nil {
					return err
				}
			}

			if message != "" {
				nd.Error.Message = message
			}
			if typ != "" {
				nd.Error.Type = typ
			}
			if level != "" {
				nd.Level = level
			}
			if len(params) > 0 && nd.Params == nil {
				nd.Params = make(map[string]interface{}, len(params))
			}
			for k, v := range params {
				nd.Params[k] = v
			}

			if nd.Error.Message == "" {
				return fmt.Errorf("emit: a message is required (use --message or --file)")
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			outcomes := make(chan notify.Outcome, 1)

			d, err := cfg.Dispatcher(log.New("module", "notify"), nil, notify.WithOnOutcome(func(o notify.Outcome) {
				select {
				case outcomes <- o:
				default:
				}
			}))
			if err != nil {
				return err
			}

			accepted := d.EmitEvent(nd.Event())

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ShutdownTimeout)
			defer cancel()

			if err := d.Close(ctx); err != nil {
				return fmt.Errorf("emit: notice did not complete: %+v", err)
			}

			if !accepted {
				return fmt.Errorf("emit: notice was not accepted")
			}

			if d.Mode() != notify.ModeEnabled {
				fmt.Fprintf(cmd.OutOrStdout(), "notice not sent: reporting is %s\n", d.Mode())
				return nil
			}

			o := <-outcomes
			if o.Kind != notify.OutcomeSuccess {
				return fmt.Errorf("emit: notice was not delivered: %s", o.Kind)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "notice delivered (status %d)\n", o.StatusCode)
			return nil
		},
	}

	cmd.Flags().StringP("file", "f", "", "YAML file describing the notice")
	cmd.Flags().StringP("message", "m", "", "error message")
	cmd.Flags().StringP("type", "t", "", "error type")
	cmd.Flags().StringP("level", "l", "", "severity level")
	cmd.Flags().StringToStringP("param", "p", nil, "request parameter to attach, as key=value")

	return cmd
}
