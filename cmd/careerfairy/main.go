package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	chatcmder "github.com/zhouzirui/career-fairy/backend/cmd/careerfairy/chat"
	servecmder "github.com/zhouzirui/career-fairy/backend/cmd/careerfairy/serve"
	speakcmder "github.com/zhouzirui/career-fairy/backend/cmd/careerfairy/speak"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "careerfairy",
		Short:         "Career Fairy mentor chat backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		servecmder.NewServeCmd(),
		chatcmder.NewChatCmd(),
		speakcmder.NewSpeakCmd(),
	)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
