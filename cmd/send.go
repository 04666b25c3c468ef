package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/luma/respio/client"
	"github.com/luma/respio/internal/env"
	"github.com/luma/respio/internal/render"
	"github.com/luma/respio/protocol"
)

var (
	sendAddr     string
	sendPassword string
	sendUsername string
	sendDB       int
	sendRESP3    bool
	sendPath     string
	sendTimeout  time.Duration
)

func init() {
	flags := sendCmd.PersistentFlags()

	flags.StringVarP(&sendAddr, "addr", "a", "", "The server address (defaults to RESPIO_ADDR, then 127.0.0.1:6379)")
	flags.StringVar(&sendUsername, "user", "", "The username to authenticate with")
	flags.StringVar(&sendPassword, "pass", "", "The password to authenticate with")
	flags.IntVar(&sendDB, "db", 0, "The logical database to select")
	flags.BoolVar(&sendRESP3, "resp3", false, "Handshake with HELLO 3 instead of speaking RESP2")
	flags.StringVar(&sendPath, "path", "", "Extract a gjson path from the rendered reply")
	flags.DurationVar(&sendTimeout, "timeout", 10*time.Second, "Overall command timeout")
}

var sendCmd = &cobra.Command{
	Use:   "send COMMAND [ARG...]",
	Short: "Send one command and print the reply as JSON",
	Long: `Send one command and print the reply as JSON

Usage
	respio send PING
	respio send --resp3 HELLO 3
	respio send SET greeting hello
	respio send --path value GET greeting
`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer signalStop()

		ctx, cancel := context.WithTimeout(ctx, sendTimeout)
		defer cancel()

		opts, err := clientOptions(ctx)
		if err != nil {
			return err
		}

		c, err := client.New(opts)
		if err != nil {
			return err
		}
		defer c.Close()

		reply, err := c.Do(ctx, protocol.NewCommandStrings(args...))
		if err != nil {
			return err
		}

		doc, err := render.JSON(reply)
		if err != nil {
			return err
		}

		if sendPath != "" {
			result := gjson.GetBytes(doc, sendPath)
			if !result.Exists() {
				return fmt.Errorf("path %q matched nothing", sendPath)
			}
			fmt.Println(result.String())
			return nil
		}

		fmt.Println(string(doc))

		if serr := reply.ErrorOrNil(); serr != nil {
			return errors.New("server returned an error reply")
		}
		return nil
	},
}

// clientOptions merges flags over the RESPIO_* environment config.
func clientOptions(ctx context.Context) (client.Options, error) {
	conf, err := env.LoadConfig(ctx)
	if err != nil {
		return client.Options{}, err
	}

	opts := client.Options{
		Addr:     conf.Addr,
		Username: conf.Username,
		Password: conf.Password,
		DB:       conf.DB,
	}
	if sendAddr != "" {
		opts.Addr = sendAddr
	}
	if sendUsername != "" {
		opts.Username = sendUsername
	}
	if sendPassword != "" {
		opts.Password = sendPassword
	}
	if sendDB != 0 {
		opts.DB = sendDB
	}
	if sendRESP3 {
		opts.Protocol = protocol.RESP3
	}
	return opts, nil
}
