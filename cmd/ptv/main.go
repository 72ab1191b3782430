// Command ptv runs the particle tracking pipeline over a recorded image
// sequence: per-frame detection, correspondence and triangulation with
// -seq, then trajectory linking with -track.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fluidmetrics/ptv3d/internal/config"
	"github.com/fluidmetrics/ptv3d/internal/ptv"
	"github.com/fluidmetrics/ptv3d/internal/ptv/calib"
	"github.com/fluidmetrics/ptv3d/internal/ptv/pipeline"
	"github.com/fluidmetrics/ptv3d/internal/ptvdb"
	"github.com/fluidmetrics/ptv3d/internal/version"
)

var (
	calibPath  = flag.String("calib", "", "Path to camera calibration JSON (required)")
	configPath = flag.String("config", "", "Path to tuning JSON; defaults apply when omitted")
	imageBases = flag.String("images", "", "Comma-separated per-camera image base paths; frame files are <base>.<frame> in PGM format")
	resDir     = flag.String("res", "res", "Result directory for rt_is and ptv_is files")
	framesSpec = flag.String("frames", "", "Frame range as first:last[:step] (required)")
	runSeq     = flag.Bool("seq", false, "Run the reconstruction sequence")
	trackDir   = flag.String("track", "", "Run trajectory linking: forward, backward or both")
	algorithm  = flag.String("algorithm", "", "Registered algorithm variant (default \"default\")")
	dbPath     = flag.String("db", "", "Optional sqlite run database")
	chunks     = flag.Int("chunks", 0, "Print an n-way frame chunk plan for parallel invocation and exit")
	skipFailed = flag.Bool("skip-failed", false, "Record failed frames and continue instead of aborting")
	listAlgos  = flag.Bool("list-algorithms", false, "List registered algorithm variants and exit")
	showVer    = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("ptv %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if *listAlgos {
		for _, name := range ptv.DefaultRegistry.List() {
			fmt.Println(name)
		}
		return
	}

	if *framesSpec == "" {
		fmt.Fprintln(os.Stderr, "missing -frames")
		flag.Usage()
		os.Exit(2)
	}
	frames, err := ptv.ParseFrameRange(*framesSpec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad -frames: %v\n", err)
		os.Exit(2)
	}

	if *chunks > 0 {
		plan, err := ptv.ChunkRange(frames.First, frames.Last, *chunks)
		if err != nil {
			fmt.Fprintf(os.Stderr, "chunk plan: %v\n", err)
			os.Exit(1)
		}
		for _, c := range plan {
			fmt.Printf("%d:%d\n", c.First, c.Last)
		}
		return
	}

	if !*runSeq && *trackDir == "" {
		fmt.Fprintln(os.Stderr, "nothing to do: pass -seq and/or -track")
		os.Exit(2)
	}
	if *calibPath == "" {
		fmt.Fprintln(os.Stderr, "missing -calib")
		os.Exit(2)
	}

	cams, err := config.LoadCalibration(*calibPath)
	if err != nil {
		log.Fatalf("calibration: %v", err)
	}

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
	}

	bases := splitBases(*imageBases)
	par := &pipeline.RunParams{
		NumCams:          len(cams),
		Range:            frames,
		Detect:           tuning.DetectParams(),
		Correspond:       tuning.CorrespondParams(),
		Track:            tuning.TrackParams(),
		Volume:           tuning.Volume(),
		Algorithm:        *algorithm,
		TargetBases:      bases,
		ResDir:           *resDir,
		SkipFailedFrames: *skipFailed,
	}

	var db *ptvdb.DB
	if *dbPath != "" {
		db, err = ptvdb.Open(*dbPath)
		if err != nil {
			log.Fatalf("run database: %v", err)
		}
		defer db.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *runSeq {
		if len(bases) == 0 {
			fmt.Fprintln(os.Stderr, "missing -images")
			os.Exit(2)
		}
		if err := os.MkdirAll(*resDir, 0o755); err != nil {
			log.Fatalf("result directory: %v", err)
		}
		if err := runSequence(ctx, par, cams, bases, db); err != nil {
			log.Fatalf("sequence: %v", err)
		}
	}

	if *trackDir != "" {
		dir, err := parseDirection(*trackDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad -track: %v\n", err)
			os.Exit(2)
		}
		if err := runTracking(ctx, par, dir, db); err != nil {
			log.Fatalf("tracking: %v", err)
		}
	}
}

func splitBases(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func parseDirection(s string) (ptv.Direction, error) {
	switch s {
	case "forward":
		return ptv.Forward, nil
	case "backward":
		return ptv.Backward, nil
	case "both":
		return ptv.Both, nil
	}
	return 0, fmt.Errorf("unknown direction %q, want forward, backward or both", s)
}

// pgmSource loads frame images from per-camera base paths.
type pgmSource struct {
	bases []string
}

func (s *pgmSource) GetImage(cam, frame int) (*ptv.Image, error) {
	return readPGM(fmt.Sprintf("%s.%d", s.bases[cam], frame))
}

func runSequence(ctx context.Context, par *pipeline.RunParams, cams []*calib.Camera, bases []string, db *ptvdb.DB) error {
	var runID string
	if db != nil {
		var err error
		runID, err = db.RecordRun(ptvdb.KindSequence, par.Range)
		if err != nil {
			return err
		}
	}

	summary, err := pipeline.RunSequence(ctx, par, cams, &pgmSource{bases: bases})
	if err != nil {
		return err
	}
	log.Printf("sequence done: %d frames, %d points, %d failed",
		len(summary.Frames), summary.TotalPoints, summary.FailedFrames)

	if db != nil {
		for _, fr := range summary.Frames {
			errText := ""
			if fr.Err != nil {
				errText = fr.Err.Error()
			}
			if err := db.RecordFrame(runID, fr.Frame, fr.Points, errText); err != nil {
				return err
			}
		}
		return db.FinishSequence(runID, summary.TotalPoints, summary.FailedFrames)
	}
	return nil
}

func runTracking(ctx context.Context, par *pipeline.RunParams, dir ptv.Direction, db *ptvdb.DB) error {
	var runID string
	if db != nil {
		var err error
		runID, err = db.RecordRun(ptvdb.KindTracking, par.Range)
		if err != nil {
			return err
		}
	}

	stats, err := pipeline.RunTracking(ctx, par, dir)
	if err != nil {
		return err
	}
	log.Printf("tracking done: %d links (%d gap), %d tracks started, %d ended",
		stats.LinksMade, stats.GapLinks, stats.TracksStarted, stats.TracksEnded)

	if db != nil {
		return db.FinishTracking(runID, stats)
	}
	return nil
}
