// Command mudra builds sign-language landmark datasets and runs live
// recognition: collect, anonymize, mirror, split, extract features, train
// and evaluate a model, then detect signs from a camera.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/ayusman/mudra/internal/batch"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/store"
	"github.com/joho/godotenv"
)

type command struct {
	summary string
	run     func(ctx context.Context, cfg *config.Config, args []string) error
}

var commands = map[string]command{
	"collect":   {"capture still images of a sign from the camera", runCollect},
	"record":    {"record video clips of a sign from the camera", runRecord},
	"anonymize": {"blur faces in collected images", runAnonymize},
	"mirror":    {"write horizontally flipped copies of the raw images", runMirror},
	"split":     {"split the image or video dataset into train/val/test", runSplit},
	"extract":   {"extract landmark features into .npy files", runExtract},
	"manifest":  {"write the label manifest from the feature tree", runManifest},
	"stats":     {"count samples per class and stage", runStats},
	"train":     {"fit and install a nearest-centroid model", runTrain},
	"evaluate":  {"score a model on a feature split", runEvaluate},
	"detect":    {"recognize signs live from the camera", runDetect},
	"serve":     {"serve the HTTP API and live feeds", runServe},
}

func main() {
	log.SetFlags(log.LstdFlags)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to mudra.yaml")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	name := flag.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.run(ctx, cfg, flag.Args()[1:]); err != nil {
		stop()
		log.Fatalf("%s: %v", name, err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: mudra [-config file] <command> [flags]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", n, commands[n].summary)
	}
	fmt.Fprintf(os.Stderr, "\nRun 'mudra <command> -h' for command flags.\n")
}

// openStore opens the run history, or returns nil when it is disabled.
func openStore(cfg *config.Config) (*store.Store, error) {
	if cfg.Store.Path == "" {
		return nil, nil
	}
	return store.New(cfg.Store.Path)
}

// tracker records one batch run in the store. A nil tracker does nothing.
type tracker struct {
	runs *store.RunRepository
	run  *store.Run
}

func startRun(st *store.Store, kind, layout string) *tracker {
	if st == nil {
		return nil
	}
	run, err := st.Runs().Start(kind, layout)
	if err != nil {
		log.Printf("Error starting run record: %v", err)
		return nil
	}
	log.Printf("Run %s started (%s)", run.ID, kind)
	return &tracker{runs: st.Runs(), run: run}
}

// onItem returns a callback storing every item, or nil.
func (t *tracker) onItem() func(batch.Item) {
	if t == nil {
		return nil
	}
	return t.runs.Recorder(t.run.ID)
}

// record stores the items of a summary built without a callback.
func (t *tracker) record(summary *batch.Summary) {
	if t == nil || summary == nil {
		return
	}
	rec := t.runs.Recorder(t.run.ID)
	for _, item := range summary.Items {
		rec(item)
	}
}

func (t *tracker) finish(summary *batch.Summary) {
	if t == nil || summary == nil {
		return
	}
	if err := t.runs.Finish(t.run, summary.Counts()); err != nil {
		log.Printf("Error finishing run record: %v", err)
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printSummary(name string, summary *batch.Summary) {
	fmt.Printf("%s: %s\n", name, summary)
	for _, item := range summary.Problems() {
		fmt.Printf("  %s %s: %v\n", item.Outcome, item.Source, item.Err)
	}
}
