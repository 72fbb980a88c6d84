package app

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roman-kulish/firefly/internal/ch10"
	"github.com/roman-kulish/firefly/internal/checksum"
	"github.com/roman-kulish/firefly/internal/derive"
	"github.com/roman-kulish/firefly/internal/flight"
	"github.com/roman-kulish/firefly/internal/storage"
)

func newTranscodeCommand(a *App, flags *flagValues) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "transcode RECORDING",
		Short: "Transcode a recording into a new store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _, err := a.Transcode(cmd.Context(), args[0], out)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.Out, path)
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Store path, defaults to <data-dir>/<recording>.db")
	addTranscodeFlags(cmd, flags)
	return cmd
}

func newDeriveCommand(a *App, flags *flagValues) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive STORE",
		Short: "Derive navigation samples and flight attributes of a store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.Derive(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printDerived(a.Out, result)
		},
	}
	addDeriveFlags(cmd, flags)
	return cmd
}

func newConvertCommand(a *App, flags *flagValues) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "convert RECORDING",
		Short: "Transcode a recording and derive its navigation samples",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _, err := a.Transcode(cmd.Context(), args[0], out)
			if err != nil {
				return err
			}
			result, err := a.Derive(cmd.Context(), path)
			if err != nil {
				return err
			}
			if _, err = fmt.Fprintln(a.Out, path); err != nil {
				return err
			}
			return printDerived(a.Out, result)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Store path, defaults to <data-dir>/<recording>.db")
	addTranscodeFlags(cmd, flags)
	addDeriveFlags(cmd, flags)
	return cmd
}

func printDerived(w io.Writer, result *derive.Result) error {
	_, err := fmt.Fprintf(w, "%s samples, flight ends resolved: %t\n", humanize.Comma(int64(result.Samples)), result.Ends != nil)
	if err == nil && result.EndsError != nil {
		_, err = fmt.Fprintf(w, "flight ends: %v\n", result.EndsError)
	}
	return err
}

func newSegmentsCommand(a *App) *cobra.Command {
	var where, from, to, csvDir string
	var loc flight.Location
	cmd := &cobra.Command{
		Use:   "segments STORE",
		Short: "List the flight segments matching a condition",
		Example: `  firefly segments data/flight.db --where "altitude > 10000 and speed > 250"
  firefly segments data/flight.db --from 2024-05-01T10:00:00Z --csv out/
  firefly segments data/flight.db -w "speed > 250" --csv out/ --bus-channel 11 --from-rt 6 --from-sa 29`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := loc != (flight.Location{})
			if raw && csvDir == "" {
				return errors.New("exporting 1553 messages requires --csv")
			}
			if raw {
				if _, err := flight.ChannelPath(ch10.MIL1553Fmt1, loc); err != nil {
					return err
				}
			}

			var opts []storage.ReaderOption
			if from != "" {
				t, err := time.Parse(time.RFC3339Nano, from)
				if err != nil {
					return fmt.Errorf("invalid --from: %w", err)
				}
				opts = append(opts, storage.WithStartTime(t))
			}
			if to != "" {
				t, err := time.Parse(time.RFC3339Nano, to)
				if err != nil {
					return fmt.Errorf("invalid --to: %w", err)
				}
				opts = append(opts, storage.WithEndTime(t))
			}

			segments, err := a.Segments(cmd.Context(), args[0], where, opts...)
			if err != nil {
				return err
			}
			if err = printSegments(a.Out, segments); err != nil {
				return err
			}
			if csvDir == "" {
				return nil
			}
			if err = writeSegmentsCSV(csvDir, args[0], segments); err != nil {
				return err
			}
			if !raw {
				return nil
			}
			messages, err := a.RawMessages(cmd.Context(), args[0], segments, loc)
			if err != nil {
				return err
			}
			return writeRawCSV(csvDir, args[0], messages)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&where, "where", "w", "", `Condition such as "speed > 50 and altitude < 10000"`)
	f.StringVar(&from, "from", "", "Ignore samples before this RFC 3339 time")
	f.StringVar(&to, "to", "", "Ignore samples after this RFC 3339 time")
	f.StringVar(&csvDir, "csv", "", "Directory to write one CSV file per segment to")
	f.StringVar(&loc.Channel, "bus-channel", "", "Also export the 1553 messages of this channel within each segment")
	f.StringVar(&loc.FromRT, "from-rt", "", "Transmitting remote terminal of the exported messages")
	f.StringVar(&loc.FromSA, "from-sa", "", "Transmitting subaddress of the exported messages")
	f.StringVar(&loc.ToRT, "to-rt", "", `Receiving remote terminal of the exported messages, or "BC"`)
	f.StringVar(&loc.ToSA, "to-sa", "", "Receiving subaddress of the exported messages")
	return cmd
}

func printSegments(w io.Writer, segments []*flight.Segment) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSTART\tEND\tDURATION\tSAMPLES\tNORTH\tSOUTH\tEAST\tWEST")
	for i, s := range segments {
		bb := s.BoundingBox()
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1,
			s.Start().Format(time.RFC3339Nano),
			s.End().Format(time.RFC3339Nano),
			s.Duration(),
			humanize.Comma(int64(s.Len())),
			degrees(bb.NorthLat), degrees(bb.SouthLat), degrees(bb.EastLon), degrees(bb.WestLon))
	}
	return tw.Flush()
}

func degrees(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.5f", v)
}

func writeSegmentsCSV(dir, storePath string, segments []*flight.Segment) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	for i, s := range segments {
		path := segmentFile(dir, storePath, i, "")
		if err := writeCSVFile(path, func(w io.Writer) error { return flight.WriteCSV(w, s.Samples()) }); err != nil {
			return err
		}
	}
	return nil
}

func writeRawCSV(dir, storePath string, messages [][]flight.RawMessages) error {
	for i, m := range messages {
		path := segmentFile(dir, storePath, i, "_1553")
		if err := writeCSVFile(path, func(w io.Writer) error { return flight.WriteRawCSV(w, m) }); err != nil {
			return err
		}
	}
	return nil
}

func segmentFile(dir, storePath string, i int, suffix string) string {
	base := filepath.Base(storePath)
	base = base[:len(base)-len(filepath.Ext(base))]
	return filepath.Join(dir, fmt.Sprintf("%s_segment_%03d%s.csv", base, i+1, suffix))
}

func writeCSVFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return write(f)
}

func newSummaryCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "summary RECORDING",
		Short: "Print an overview of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			summary, err := ch10.Summarize(cmd.Context(), ch10.NewDumpSource(args[0]))
			if err != nil {
				return err
			}
			return printSummary(a.Out, summary, uint64(st.Size()))
		},
	}
}

func printSummary(w io.Writer, s *ch10.Summary, size uint64) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "File:\t%s (%s)\n", s.Name, humanize.Bytes(size))
	fmt.Fprintf(tw, "Packets:\t%s\n", humanize.Comma(int64(s.Packets)))
	fmt.Fprintf(tw, "RCC version:\t%s\n", ch10.RCCVersionString(s.RCCVersion))
	fmt.Fprintf(tw, "TMATS version:\t%s\n", s.TMATSVersion())
	fmt.Fprintf(tw, "Recorder:\t%s %s (firmware %s)\n", s.RecorderManufacturer(), s.RecorderModel(), s.RecorderFirmware())
	fmt.Fprintf(tw, "Recording date:\t%s\n", s.RecordingDateTime())
	fmt.Fprintf(tw, "Indexing:\t%t\n", s.IndexingEnabled())
	fmt.Fprintf(tw, "Events:\t%t\n", s.EventsEnabled())
	if !s.Start.IsZero() {
		fmt.Fprintf(tw, "Start:\t%s\n", s.Start.Format(time.RFC3339Nano))
		fmt.Fprintf(tw, "Stop:\t%s (%s)\n", s.Stop.Format(time.RFC3339Nano), s.Stop.Sub(s.Start))
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "CHANNEL\tTYPE\tPACKETS")
	for _, c := range s.Channels {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", c.ChannelID, c.DataType, humanize.Comma(int64(c.Packets)))
	}
	return tw.Flush()
}

func newInfoCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "info STORE",
		Short: "Print an overview of a store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if !fileExists(args[0]) {
				return fmt.Errorf("store %s not found", args[0])
			}
			store := storage.NewSqliteStore(args[0])
			defer func() {
				err = errors.Join(err, store.Close())
			}()

			info, err := store.Info(cmd.Context())
			if err != nil {
				return err
			}
			return printInfo(a.Out, info)
		},
	}
}

func printInfo(w io.Writer, info *storage.Info) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, k := range slices.Sorted(maps.Keys(info.Attributes)) {
		fmt.Fprintf(tw, "%s:\t%s\n", k, info.Attributes[k])
	}
	fmt.Fprintf(tw, "TMATS attributes:\t%d\n", len(info.TMATS))
	fmt.Fprintf(tw, "Samples:\t%s\n", humanize.Comma(int64(info.Samples)))
	if info.Samples > 0 {
		fmt.Fprintf(tw, "Samples span:\t%s to %s\n", info.Start.Format(time.RFC3339Nano), info.End.Format(time.RFC3339Nano))
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "DATASET\tKIND\tLENGTH")
	for _, d := range info.Datasets {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Path, d.Kind, humanize.Comma(int64(d.Length)))
	}
	if len(info.Links) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "LINK\tTARGET\t")
		for _, k := range slices.Sorted(maps.Keys(info.Links)) {
			fmt.Fprintf(tw, "%s\t%s\t\n", k, info.Links[k])
		}
	}
	return tw.Flush()
}

func newVerifyCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "verify STORE [RECORDING]",
		Short: "Check that a recording matches the checksum recorded in a store",
		Long: `Check that a recording matches the checksum recorded in a store.

Without RECORDING the recording is looked up by its stored file name next to
the store.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if !fileExists(args[0]) {
				return fmt.Errorf("store %s not found", args[0])
			}
			store := storage.NewSqliteStore(args[0])
			defer func() {
				err = errors.Join(err, store.Close())
			}()

			attrs, err := store.Attributes(cmd.Context(), storage.RootGroup)
			if err != nil {
				return err
			}
			expected, ok := attrs[storage.AttrCh10FileChecksum]
			if !ok {
				return fmt.Errorf("store %s has no recording checksum", args[0])
			}

			var recording string
			if len(args) == 2 {
				recording = args[1]
			} else if recording, err = locateRecording(args[0], attrs[storage.AttrCh10File]); err != nil {
				return err
			}
			if err = checksum.Verify(recording, expected); err != nil {
				return err
			}

			a.Logger.Info().Str("recording", recording).Msg("checksum verified")
			_, err = fmt.Fprintf(a.Out, "%s: OK\n", recording)
			return err
		},
	}
}

// locateRecording finds the recording named name, possibly compressed, in the
// directory of the store.
func locateRecording(storePath, name string) (string, error) {
	if name == "" {
		return "", errors.New("store has no recording file name")
	}
	path := filepath.Join(filepath.Dir(storePath), name)
	for _, p := range []string{path, path + ".zst"} {
		if fileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("recording %s not found", path)
}

func newDumpCommand(a *App) *cobra.Command {
	var out string
	var channels []uint
	cmd := &cobra.Command{
		Use:   "dump RECORDING",
		Short: "Copy the packets of a recording into a new dump file",
		Long: `Copy the packets of a recording into a new dump file.

The output is compressed when its name ends in .zst. Channel IDs restrict the
copy to those channels.`,
		Example: `  firefly dump sortie.ch10 -o sortie_bus.ch10.zst --channel-id 11`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.Dump(cmd.Context(), args[0], out, channels)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.Out, "%s: %s packets\n", out, humanize.Comma(int64(n)))
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output dump file")
	cmd.Flags().UintSliceVar(&channels, "channel-id", nil, "Channel ID to keep, repeatable")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
