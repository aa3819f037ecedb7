// cmd/ravlo/main.go
package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Corphon/Ravlo/internal/app"
	"github.com/Corphon/Ravlo/internal/config"
	"github.com/Corphon/Ravlo/internal/di"
	"github.com/Corphon/Ravlo/internal/utils"
	"github.com/spf13/cobra"
)

// cli 保存全局参数和延迟初始化的服务
type cli struct {
	dataDir  string
	logLevel string

	app    *app.App
	logger *utils.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, warnStyle.Render("error:"), err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "ravlo",
		Short:         "Format LinkedIn posts with Unicode styles, manage drafts and generate posts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.dataDir, "data-dir", "", "data directory (default: $DATA_DIR or ./data)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "error", "log level: debug, info, warn, error")

	root.AddCommand(
		c.formatCmd(),
		c.decodeCmd(),
		c.statsCmd(),
		c.draftsCmd(),
		c.hooksCmd(),
		c.generateCmd(),
		c.assetsCmd(),
	)
	return root
}

// services 按需初始化应用；纯文本命令不需要
func (c *cli) services(cmd *cobra.Command) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}

	// 全局日志只用于配置加载的警告
	utils.GetLogger().SetLogLevel(utils.ParseLogLevel(c.logLevel))
	base, err := config.Load()
	if err != nil {
		return nil, err
	}
	if c.dataDir != "" {
		base.DataDir = c.dataDir
	}

	c.logger = utils.NewLogger(cmd.ErrOrStderr(), utils.ParseLogLevel(c.logLevel))
	a, err := app.InitServices(base, di.NewContainer(), c.logger)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func resolve[T any](c *cli, cmd *cobra.Command, name string) (T, error) {
	var zero T
	a, err := c.services(cmd)
	if err != nil {
		return zero, err
	}
	return di.Resolve[T](a.Container, name)
}

// inputText 取参数拼接的文本，没有参数时读标准输入
func inputText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	return string(bytes.TrimRight(data, "\r\n")), nil
}
