// Package main is the entry point for the pianodaw CLI
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"github.com/james-see/pianodaw/pkg/api"
	"github.com/james-see/pianodaw/pkg/config"
	"github.com/james-see/pianodaw/pkg/edit"
	"github.com/james-see/pianodaw/pkg/model"
	"github.com/james-see/pianodaw/pkg/session"
	"github.com/james-see/pianodaw/pkg/timing"
	"github.com/james-see/pianodaw/pkg/tui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	outputFile string
	logLevel   string
	configPath string
	clipNumber int
	exportPPQ  int
	gridName   string
	strength   float64
	swing      float64
	opName     string
	amount     float64
	serverPort int
	portName   string
	inPortName string
	record     bool
	replace    bool
	loop       bool
)

var (
	cfg    *config.Config
	logger *log.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pianodaw",
	Short: "Edit, arrange and play MIDI piano-roll projects",
	Long: `pianodaw edits the musical timeline of a piano-roll project: notes and
controller events in clips, clips arranged on tracks, tempo and loop.

Projects are stored as XML (.pdaw, .xml), YAML or JSON.

Examples:
  pianodaw new song.pdaw
  pianodaw import take.mid -o song.pdaw
  pianodaw quantize song.pdaw --clip 1 --grid 1/16 --strength 0.8
  pianodaw export song.pdaw --clip 1 -o clip.mid
  pianodaw play song.pdaw --port "IAC Driver Bus 1"
  pianodaw tui song.pdaw
  pianodaw serve song.pdaw --port 8080`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var newCmd = &cobra.Command{
	Use:   "new <file>",
	Short: "Create an empty project",
	Args:  cobra.ExactArgs(1),
	RunE:  runNew,
}

var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Show project, track and clip details",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export a clip as a Standard MIDI File",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <input.mid>",
	Short: "Import a MIDI file into a project",
	Long:  `Imports a MIDI file as a new clip on a new track. With --output naming an existing project the clip is added to it, otherwise a new project is created.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var quantizeCmd = &cobra.Command{
	Use:   "quantize <file>",
	Short: "Quantize every note of a clip",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuantize,
}

var transformCmd = &cobra.Command{
	Use:   "transform <file>",
	Short: "Apply a note transform to every note of a clip",
	Long:  "Operations: " + strings.Join(edit.Ops, ", "),
	Args:  cobra.ExactArgs(1),
	RunE:  runTransform,
}

var convertCmd = &cobra.Command{
	Use:   "convert <input>",
	Short: "Convert a project between XML, YAML and JSON",
	Long:  `Reads the project and writes it in the format named by the output file extension.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

var tuiCmd = &cobra.Command{
	Use:   "tui [file]",
	Short: "Launch interactive terminal UI",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve [file]",
	Short: "Start the API server",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI ports",
	Args:  cobra.NoArgs,
	RunE:  runPorts,
}

var playCmd = &cobra.Command{
	Use:   "play <file>",
	Short: "Play a project to a MIDI output until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/pianodaw/config.json)")

	for _, c := range []*cobra.Command{exportCmd, quantizeCmd, transformCmd} {
		c.Flags().IntVarP(&clipNumber, "clip", "c", 1, "Clip number, from 1")
	}
	for _, c := range []*cobra.Command{exportCmd, importCmd, quantizeCmd, transformCmd} {
		c.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path")
	}

	// convert command
	convertCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (required)")
	_ = convertCmd.MarkFlagRequired("output")

	// export command
	exportCmd.Flags().IntVar(&exportPPQ, "ppq", 0, "File resolution (default from config)")

	// quantize command
	quantizeCmd.Flags().StringVarP(&gridName, "grid", "g", "", "Grid, e.g. 1/16 or 1/8T (default from config)")
	quantizeCmd.Flags().Float64Var(&strength, "strength", -1, "Strength 0..1 (default from config)")
	quantizeCmd.Flags().Float64Var(&swing, "swing", -1, "Swing 0..1, 0.5 is straight (default from config)")

	// transform command
	transformCmd.Flags().StringVar(&opName, "op", "", "Transform to apply (required)")
	transformCmd.Flags().Float64VarP(&amount, "amount", "a", 0, "Transform amount")
	_ = transformCmd.MarkFlagRequired("op")

	// serve command
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "Server port (default from config)")

	// play and tui commands
	for _, c := range []*cobra.Command{playCmd, tuiCmd} {
		c.Flags().StringVarP(&portName, "port", "p", "", "MIDI output port (default from config, then the first port)")
	}
	playCmd.Flags().StringVar(&inPortName, "in", "", "MIDI input port to record from")
	playCmd.Flags().BoolVar(&record, "record", false, "Record the input into clip --clip")
	playCmd.Flags().BoolVar(&replace, "replace", false, "Recorded notes replace what they overlap; with --loop the loop range is cleared first")
	playCmd.Flags().IntVarP(&clipNumber, "clip", "c", 1, "Clip to record into")
	playCmd.Flags().BoolVar(&loop, "loop", false, "Loop the project loop range")

	// Add commands
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(quantizeCmd)
	rootCmd.AddCommand(transformCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(playCmd)
}

// setup loads the config and builds the logger every command shares.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger = log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		Prefix:          "pianodaw",
		ReportTimestamp: true,
	})
	return nil
}

func newSession() *session.Session {
	return session.New(cfg, logger)
}

// openSession opens path into a fresh session.
func openSession(path string) (*session.Session, error) {
	s := newSession()
	if err := s.Open(path); err != nil {
		return nil, err
	}
	return s, nil
}

// saveTo writes s to outputFile when set, otherwise back to its own file.
func saveTo(s *session.Session) error {
	if outputFile != "" {
		return s.SaveAs(outputFile)
	}
	return s.Save()
}

// saveConfig remembers the last project. Failing to do so is not fatal.
func saveConfig() {
	if configPath != "" {
		if err := cfg.SaveTo(configPath); err != nil {
			logger.Warn("saving config", "err", err)
		}
		return
	}
	if err := cfg.Save(); err != nil {
		logger.Warn("saving config", "err", err)
	}
}

func runNew(cmd *cobra.Command, args []string) error {
	path := args[0]
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	s := newSession()
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	s.Project().SetName(name)
	if err := s.SaveAs(path); err != nil {
		return err
	}
	saveConfig()
	fmt.Printf("Created %s\n", path)
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	s, err := openSession(args[0])
	if err != nil {
		return err
	}
	p := s.Project()
	info := p.Info()
	fmt.Printf("Project:   %s\n", info.Name)
	fmt.Printf("Tempo:     %.2f BPM\n", info.Tempo)
	fmt.Printf("Meter:     %d/%d\n", info.Numerator, info.Denominator)
	fmt.Printf("Length:    %s\n", timing.TickToBarBeat(info.Length, info.Numerator))
	fmt.Printf("Loop:      %s - %s\n",
		timing.TickToBarBeat(info.LoopStart, info.Numerator),
		timing.TickToBarBeat(info.LoopEnd, info.Numerator))

	fmt.Println("\nClips:")
	for i, h := range p.ClipHandles() {
		c, ok := p.Clip(h)
		if !ok {
			continue
		}
		fmt.Printf("  %d: %-20s %4d notes %4d cc  %s\n", i+1, c.Name(), c.NumNotes(),
			len(c.CCEvents()), timing.TickToBarBeat(c.TotalDuration(), info.Numerator))
	}

	fmt.Println("\nTracks:")
	for i, t := range p.Tracks() {
		flags := ""
		if t.Muted() {
			flags += " muted"
		}
		if t.Solo() {
			flags += " solo"
		}
		fmt.Printf("  %d: %-20s %-10s vol %.2f pan %+.2f%s\n", i+1, t.Name(), t.Type(), t.Volume(), t.Pan(), flags)
		for _, r := range t.ClipRegions() {
			name := "?"
			if c, ok := p.Clip(r.Clip); ok {
				name = c.Name()
			}
			fmt.Printf("       %s  %s +%d ticks\n", name,
				timing.TickToBarBeat(r.StartTick, info.Numerator), r.LengthTick)
		}
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	s, err := openSession(args[0])
	if err != nil {
		return err
	}
	if exportPPQ > 0 {
		cfg.ExportPPQ = exportPPQ
	}
	output := outputFile
	if output == "" {
		_, c, err := s.ClipByNumber(clipNumber)
		if err != nil {
			return err
		}
		output = c.Name() + ".mid"
	}
	if err := s.ExportClip(clipNumber, output); err != nil {
		return err
	}
	fmt.Printf("Exported clip %d -> %s\n", clipNumber, output)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := outputFile
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ".pdaw"
	}

	var s *session.Session
	if _, err := os.Stat(output); err == nil {
		if s, err = openSession(output); err != nil {
			return err
		}
	} else {
		s = newSession()
		s.Project().SetName(strings.TrimSuffix(filepath.Base(output), filepath.Ext(output)))
	}
	h, err := s.ImportMIDI(input)
	if err != nil {
		return err
	}
	if err := s.SaveAs(output); err != nil {
		return err
	}
	c, _ := s.Project().Clip(h)
	fmt.Printf("Imported %s (%d notes) -> %s\n", input, c.NumNotes(), output)
	return nil
}

func runQuantize(cmd *cobra.Command, args []string) error {
	s, err := openSession(args[0])
	if err != nil {
		return err
	}
	_, clip, err := s.ClipByNumber(clipNumber)
	if err != nil {
		return err
	}
	p := s.QuantizeParams()
	if gridName != "" {
		g, err := timing.ParseGridSize(gridName)
		if err != nil {
			return err
		}
		p.GridTicks = g.Ticks()
	}
	if strength >= 0 {
		p.Strength = min(strength, 1)
	}
	if swing >= 0 {
		p.Swing = min(swing, 1)
	}
	q := edit.NewQuantize(clip, session.NoteIDs(clip), p)
	s.Do(q)
	if err := saveTo(s); err != nil {
		return err
	}
	fmt.Printf("Quantized %d of %d notes\n", len(q.Moved()), clip.NumNotes())
	return nil
}

func runTransform(cmd *cobra.Command, args []string) error {
	s, err := openSession(args[0])
	if err != nil {
		return err
	}
	_, clip, err := s.ClipByNumber(clipNumber)
	if err != nil {
		return err
	}
	t, err := edit.NewTransform(opName, clip, session.NoteIDs(clip), amount)
	if err != nil {
		return err
	}
	s.Do(t)
	if err := saveTo(s); err != nil {
		return err
	}
	fmt.Printf("%s: %d notes\n", t.Description(), clip.NumNotes())
	return nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	input := args[0]
	if model.DetectFormat(outputFile) == model.FormatUnknown {
		return fmt.Errorf("%w: %s", model.ErrUnknownFormat, outputFile)
	}
	fmt.Printf("Converting %s -> %s\n", input, outputFile)
	p, err := model.OpenProject(input)
	if err != nil {
		return err
	}
	if err := p.SaveFile(outputFile); err != nil {
		return err
	}
	fmt.Println("Conversion complete!")
	return nil
}

// findOutPort resolves the output port by name, config, then first available.
func findOutPort() (func(midi.Message) error, error) {
	name := portName
	if name == "" {
		name = cfg.MIDIOut
	}
	if name != "" {
		out, err := midi.FindOutPort(name)
		if err != nil {
			return nil, fmt.Errorf("MIDI output %q: %w", name, err)
		}
		return midi.SendTo(out)
	}
	outs := midi.GetOutPorts()
	if len(outs) == 0 {
		return nil, errors.New("no MIDI output ports")
	}
	logger.Info("using MIDI output", "port", outs[0].String())
	return midi.SendTo(outs[0])
}

func runPorts(cmd *cobra.Command, args []string) error {
	defer midi.CloseDriver()
	fmt.Println("=== MIDI Input Ports ===")
	for i, p := range midi.GetInPorts() {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, p := range midi.GetOutPorts() {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
	return nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	s, err := openSession(args[0])
	if err != nil {
		return err
	}
	defer midi.CloseDriver()
	send, err := findOutPort()
	if err != nil {
		return err
	}

	eng := s.Sequencer()
	tr := s.Transport()
	tr.SetLooping(loop)
	if record {
		if inPortName == "" {
			return errors.New("--record needs --in")
		}
		in, err := midi.FindInPort(inPortName)
		if err != nil {
			return fmt.Errorf("MIDI input %q: %w", inPortName, err)
		}
		stop, err := midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
			eng.Input(msg)
		})
		if err != nil {
			return err
		}
		defer stop()
		if err := s.Record(eng, clipNumber, replace); err != nil {
			return err
		}
	}

	tr.Start()
	fmt.Printf("Playing %s at %.1f BPM, ctrl+c to stop\n", s.Project().Name(), tr.Tempo())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := s.Play(ctx, eng, send); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if record {
		eng.Recorder().Stop()
		s.Project().SetModified(true)
		if err := s.Save(); err != nil {
			return err
		}
		fmt.Printf("Recording saved to %s\n", s.Project().FilePath())
	}
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	s := newSession()
	if len(args) == 1 {
		if err := s.Open(args[0]); err != nil {
			return err
		}
	}
	// The TUI owns the terminal; keep log output off it.
	logger.SetOutput(io.Discard)

	var send func(midi.Message) error
	if portName != "" || cfg.MIDIOut != "" {
		defer midi.CloseDriver()
		var err error
		if send, err = findOutPort(); err != nil {
			return err
		}
	}
	err := tui.Run(s, send)
	saveConfig()
	return err
}

func runServe(cmd *cobra.Command, args []string) error {
	s := newSession()
	if len(args) == 1 {
		if err := s.Open(args[0]); err != nil {
			return err
		}
	}
	port := serverPort
	if port == 0 {
		port = cfg.Port
	}
	fmt.Printf("Starting API server on port %d...\n", port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", port)
	return api.StartServer(s, port)
}
