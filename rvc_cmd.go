package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/miovo/miovo/internal/audio"
	"github.com/miovo/miovo/internal/rvc"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
)

var (
	rvcModel    string
	rvcOut      string
	rvcOutDir   string
	rvcSepModel string
	rvcParams   = rvc.DefaultParams()

	rvcModelsCmd = &cobra.Command{
		Use:   "models",
		Short: "List the voice models the service can load",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rc, err := newRVCClient()
			if err != nil {
				return err
			}
			models, err := rc.Models(cmd.Context())
			if err != nil {
				return fmt.Errorf("unable to list models: %w", err)
			}
			if len(models) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No models found.")
				return nil
			}
			for _, m := range models {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}

	rvcLoadCmd = &cobra.Command{
		Use:   "load MODEL",
		Short: "Load a voice model into the service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := newRVCClient()
			if err != nil {
				return err
			}
			res, err := rc.LoadModel(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("unable to load model: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", okMark, keyword(res.Model), subtle(fmt.Sprintf("(%d cached)", res.CacheSize)))
			return nil
		},
	}

	rvcConvertCmd = &cobra.Command{
		Use:     "convert INPUT",
		Short:   "Re-voice a WAV file with a model",
		Example: paragraph("miovo rvc convert --model mao.pth --out sung.wav take1.wav"),
		Args:    cobra.ExactArgs(1),
		RunE:    runConvert,
	}

	rvcSeparateCmd = &cobra.Command{
		Use:     "separate INPUT",
		Short:   "Split a song into vocals and accompaniment",
		Example: paragraph("miovo rvc separate --out-dir stems song.wav"),
		Args:    cobra.ExactArgs(1),
		RunE:    runSeparate,
	}

	rvcCmd = &cobra.Command{
		Use:   "rvc",
		Short: "Singing voice conversion",
		Long:  paragraph(fmt.Sprintf("\nConvert recordings with RVC voice models. Requests go to %s, or to the synthesis gateway when it is empty.", keyword("rvc.url"))),
		Args:  cobra.NoArgs,
	}
)

func init() {
	f := rvcConvertCmd.Flags()
	f.StringVar(&rvcModel, "model", "", "voice model file name")
	f.StringVarP(&rvcOut, "out", "o", "", "output file (default INPUT with an -rvc suffix)")
	f.StringVar(&rvcParams.F0Method, "f0", rvcParams.F0Method, "pitch extraction: harvest, rmvpe, crepe or pm")
	f.Float64Var(&rvcParams.Protect, "protect", rvcParams.Protect, "consonant protection (0.0 - 0.5)")
	f.Float64Var(&rvcParams.IndexRate, "index-rate", rvcParams.IndexRate, "feature index influence (0.0 - 1.0)")
	f.IntVar(&rvcParams.FilterRadius, "filter-radius", rvcParams.FilterRadius, "median filter radius (0 - 7)")
	_ = rvcConvertCmd.MarkFlagRequired("model")

	rvcSeparateCmd.Flags().StringVar(&rvcSepModel, "model", rvc.DefaultSeparationModel, "separation model")
	rvcSeparateCmd.Flags().StringVar(&rvcOutDir, "out-dir", ".", "directory for the stems")

	rvcCmd.AddCommand(rvcModelsCmd, rvcLoadCmd, rvcConvertCmd, rvcSeparateCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	logToStderr()

	in, err := homedir.Expand(args[0])
	if err != nil {
		return err
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("unable to open file: %w", err)
	}

	out := rvcOut
	if out == "" {
		out = suffixed(in, "-rvc")
	}
	if out, err = homedir.Expand(out); err != nil {
		return err
	}

	rc, err := newRVCClient()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	converted, err := rc.Convert(ctx, data, rvcModel, rvcParams)
	if err != nil {
		return fmt.Errorf("unable to convert: %w", err)
	}
	return writeAudio(cmd, out, converted)
}

func runSeparate(cmd *cobra.Command, args []string) error {
	logToStderr()

	in, err := homedir.Expand(args[0])
	if err != nil {
		return err
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("unable to open file: %w", err)
	}
	dir, err := homedir.Expand(rvcOutDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec
		return fmt.Errorf("unable to create directory: %w", err)
	}

	rc, err := newRVCClient()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	stems, err := rc.Separate(ctx, data, rvcSepModel)
	if err != nil {
		return fmt.Errorf("unable to separate: %w", err)
	}

	base := filepath.Join(dir, filepath.Base(in))
	if err := writeAudio(cmd, suffixed(base, "-vocals"), stems.Vocals); err != nil {
		return err
	}
	if len(stems.Accompaniment) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No accompaniment returned.")
		return nil
	}
	return writeAudio(cmd, suffixed(base, "-accompaniment"), stems.Accompaniment)
}

// writeAudio saves a WAV payload and reports its size and length.
func writeAudio(cmd *cobra.Command, path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("unable to write file: %w", err)
	}

	length := "unknown length"
	if d, err := audio.Duration(data); err == nil {
		length = d.Round(10 * time.Millisecond).String()
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", okMark, path, subtle(fmt.Sprintf("(%s, %s)", humanize.Bytes(uint64(len(data))), length)))
	return nil
}

// suffixed inserts suffix before the extension of path; the result is
// always a .wav file.
func suffixed(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ".wav"
}
