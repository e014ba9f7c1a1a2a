package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	polyvox "github.com/polyvox/polyvox-go"
)

var speechCmd = &cobra.Command{
	Use:   "speech [audio file]",
	Short: "Translate speech in real time from an audio file or stdin",
	Long: `Streams an audio file (or stdin when no file is given) to the voice
translation service and prints the final transcripts. A first interrupt
(Ctrl-C) finishes the stream gracefully so concluded transcripts are kept;
a second interrupt abandons the session.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSpeech,
}

func init() {
	speechCmd.Flags().StringSlice("to", nil, "target language (repeatable, max 5)")
	speechCmd.Flags().String("from", "", "source language (empty for auto-detect)")
	speechCmd.Flags().String("source-mode", "", "source language handling, e.g. fixed or auto")
	speechCmd.Flags().String("content-type", "", "audio content type (detected from file extension when omitted)")
	speechCmd.Flags().Int("chunk-size", polyvox.DefaultChunkSize, "audio chunk size in bytes")
	speechCmd.Flags().Duration("chunk-interval", polyvox.DefaultChunkInterval, "delay between chunks")
	speechCmd.Flags().Bool("no-reconnect", false, "disable automatic reconnection")
	speechCmd.Flags().Int("max-reconnects", polyvox.DefaultMaxReconnectAttempts, "maximum reconnect attempts")
	speechCmd.Flags().String("formality", "", "formality preference for target text")
	speechCmd.Flags().String("glossary", "", "glossary id to apply")
}

func runSpeech(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.APIKey == "" {
		return errors.New("no API key configured (set api_key in ~/.polyvox.yaml or POLYVOX_API_KEY)")
	}

	logger := zap.NewNop()
	if verbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()
	}

	targets, _ := cmd.Flags().GetStringSlice("to")
	from, _ := cmd.Flags().GetString("from")
	sourceMode, _ := cmd.Flags().GetString("source-mode")
	contentType, _ := cmd.Flags().GetString("content-type")
	chunkSize, _ := cmd.Flags().GetInt("chunk-size")
	chunkInterval, _ := cmd.Flags().GetDuration("chunk-interval")
	noReconnect, _ := cmd.Flags().GetBool("no-reconnect")
	maxReconnects, _ := cmd.Flags().GetInt("max-reconnects")
	formality, _ := cmd.Flags().GetString("formality")
	glossary, _ := cmd.Flags().GetString("glossary")

	var source polyvox.ChunkSource
	if len(args) == 1 {
		if contentType == "" {
			contentType = polyvox.DetectContentType(args[0])
		}
		source, err = polyvox.NewFileChunkSource(args[0], chunkSize)
		if err != nil {
			return err
		}
	} else {
		source = polyvox.NewReaderChunkSource(os.Stdin, chunkSize)
	}
	paced := polyvox.NewChunkPacer(source, chunkInterval)

	client := polyvox.NewVoiceClient(polyvox.ClientOptions{
		APIKey:        cfg.APIKey,
		APIBaseURL:    cfg.APIBaseURL,
		TrustedDomain: cfg.TrustedDomain,
		Logger:        logger,
	})

	opts := polyvox.SessionOptions{
		SourceLanguage:     from,
		SourceLanguageMode: sourceMode,
		TargetLanguages:    targets,
		ContentType:        contentType,
		Formality:          formality,
		GlossaryID:         glossary,
		Reconnect: polyvox.ReconnectPolicy{
			Disabled:    noReconnect,
			MaxAttempts: maxReconnects,
		},
		OnTargetTranscript: func(u *polyvox.TargetTranscriptUpdate) {
			for _, seg := range u.Concluded {
				fmt.Printf("[%s] %s\n", u.Language, seg.Text)
			}
		},
		OnReconnect: func(attempt int) {
			fmt.Fprintf(os.Stderr, "connection lost, reconnecting (attempt %d)...\n", attempt)
		},
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	interrupts := make(chan os.Signal, 2)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)
	go func() {
		<-interrupts
		// First interrupt: finish gracefully so concluded transcripts survive.
		fmt.Fprintln(os.Stderr, "finishing stream, interrupt again to abort")
		client.Stop()
		<-interrupts
		client.Cancel()
	}()

	start := time.Now()
	result, err := client.Run(ctx, paced, opts)
	if err != nil {
		return err
	}

	fmt.Printf("\nsession %s finished in %s\n", result.SessionID, time.Since(start).Round(time.Millisecond))
	fmt.Printf("source [%s]: %s\n", result.Source.Language, result.Source.Text)
	for _, t := range result.Targets {
		fmt.Printf("target [%s]: %s\n", t.Language, t.Text)
	}
	return nil
}
