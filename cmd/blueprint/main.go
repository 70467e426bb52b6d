// Package main 章节目录生成命令行工具
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:           "blueprint",
		Short:         "Generate and maintain the chapter blueprint of a novel",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	configDir string
	dataDir   string
	novelID   string
	jsonOut   bool
	verbose   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// requireNovel 除任务查询外的命令都需要 --novel
func requireNovel(*cobra.Command, []string) error {
	if novelID == "" {
		return fmt.Errorf("required flag \"novel\" not set")
	}
	return nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configDir, "config", "c", "configs", "Directory holding config.yaml")
	flags.StringVar(&dataDir, "data", "", "Override blueprint.data_dir")
	flags.StringVarP(&novelID, "novel", "n", "", "Novel id (sub directory of the data dir)")
	flags.BoolVar(&jsonOut, "json", false, "Print results as JSON")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(generateCmd, resumeCmd, removeCmd, checkCmd, trackCmd, showCmd, enqueueCmd, jobCmd)
}
