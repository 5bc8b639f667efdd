package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/chatport/chatport/internal/pipeline"
)

var convertCmd = &cobra.Command{
	Use:   "convert [export files or dirs...]",
	Short: "Convert exports into importable chat JSON documents",
	Long: `Convert reads chat export files and writes one Open WebUI import
document per conversation into the output directory, named
{title}_{chat id}.json. Non-image media is copied into a media/
subdirectory next to the documents; images are inlined as data URIs
unless --embed-images=false.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

var convertFlags struct {
	userID      string
	outDir      string
	mediaPrefix string
	model       string
	modelName   string
	embedImages bool
}

func init() {
	convertCmd.Flags().StringVar(&convertFlags.userID, "userid", "", "destination user id (required)")
	convertCmd.Flags().StringVarP(&convertFlags.outDir, "output-dir", "o", "output", "output directory")
	convertCmd.Flags().StringVar(&convertFlags.mediaPrefix, "media-url-prefix", "media", "media subdirectory and URL prefix")
	convertCmd.Flags().StringVar(&convertFlags.model, "model", "", "model id stamped on imported messages")
	convertCmd.Flags().StringVar(&convertFlags.modelName, "model-name", "", "model display name")
	convertCmd.Flags().BoolVar(&convertFlags.embedImages, "embed-images", true, "inline images as data URIs")
	_ = convertCmd.MarkFlagRequired("userid")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	model, modelName := convertFlags.model, convertFlags.modelName
	if model == "" {
		model, modelName = cfg.Model, cfg.ModelName
	}

	c := pipeline.NewConverter(
		convertFlags.userID, convertFlags.outDir,
		model, modelName,
		convertFlags.embedImages, slog.Default(),
	)
	if convertFlags.mediaPrefix != "" {
		c.MediaPrefix = convertFlags.mediaPrefix
	}
	written, err := c.Run(cmd.Context(), args)
	if err != nil {
		return err
	}

	fmt.Printf("Converted %d conversations into %s\n", written, convertFlags.outDir)
	return nil
}
