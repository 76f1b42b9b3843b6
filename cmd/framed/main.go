package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nm-morais/go-frames/configs"
	"github.com/nm-morais/go-frames/pkg/logs"
	"github.com/nm-morais/go-frames/pkg/message"
	"github.com/nm-morais/go-frames/pkg/serialization"
	"github.com/nm-morais/go-frames/pkg/serializationManager"
	"github.com/nm-morais/go-frames/pkg/transport"
)

var configPath string

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "framed",
		Short: "Framed TCP echo server and client",
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML config file path (defaults apply when empty)")
	cmd.AddCommand(serveCmd())
	cmd.AddCommand(sendCmd())
	return cmd
}

func loadConfig() (configs.Config, error) {
	config := configs.DefaultConfig()
	if configPath != "" {
		var err error
		if config, err = configs.ReadConfigFromFile(configPath); err != nil {
			return configs.Config{}, err
		}
	}
	if err := logs.SetLevel(config.LogLevel); err != nil {
		return configs.Config{}, err
	}
	return config, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the echo server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %s", err)
			}
			registry, err := serializationManager.NewDefault()
			if err != nil {
				return err
			}
			serverConf, err := config.ServerConfig(registry)
			if err != nil {
				return err
			}
			server, err := transport.NewServer(serverConf, demoStages)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Serve(ctx)
		},
	}
}

func sendCmd() *cobra.Command {
	var (
		addr    string
		asJSON  bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "send [payload...]",
		Short: "Send each payload to the server and print the replies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %s", err)
			}
			if addr == "" {
				addr = config.ListenAddr
			}
			registry, err := serializationManager.NewDefault()
			if err != nil {
				return err
			}
			conf, err := config.ChannelConfig(registry)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			client, err := transport.Dial(ctx, addr, conf)
			if err != nil {
				return err
			}
			defer client.Close()

			for _, arg := range args {
				var msg interface{} = []byte(arg)
				if conf.Protocol != nil {
					msg, err = request(arg, asJSON)
					if err != nil {
						return err
					}
				}
				if err := client.Send(msg); err != nil {
					return err
				}
				reply, err := client.Receive(ctx)
				if err != nil {
					return err
				}
				printReply(cmd, reply)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address (defaults to listen_addr)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "send payloads as JSON documents (protocol mode)")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 5*time.Second, "overall deadline")
	return cmd
}

func request(arg string, asJSON bool) (message.Message, error) {
	if !asJSON {
		return message.NewRequest(serialization.AlgorithmRaw, []byte(arg)), nil
	}
	var body interface{}
	if err := json.Unmarshal([]byte(arg), &body); err != nil {
		return message.Message{}, fmt.Errorf("payload %q is not JSON: %s", arg, err)
	}
	return message.NewRequest(serialization.AlgorithmJSON, body), nil
}

func printReply(cmd *cobra.Command, reply interface{}) {
	switch r := reply.(type) {
	case []byte:
		cmd.Printf("%s\n", r)
	case message.Message:
		if b, ok := r.Body().([]byte); ok {
			cmd.Printf("%s status=%d %s\n", r, r.Header().Status, b)
			return
		}
		cmd.Printf("%s status=%d %v\n", r, r.Header().Status, r.Body())
	default:
		cmd.Printf("%v\n", r)
	}
}
