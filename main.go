package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/echolab/voicepair/pkg/dataset"
	"github.com/echolab/voicepair/pkg/runs"
	"github.com/echolab/voicepair/pkg/verifier"
	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/joho/godotenv"
)

func loadEnv(filenames ...string) {
	for _, filename := range filenames {
		if s, err := os.Stat(filename); err == nil && !s.IsDir() {
			godotenv.Load(filename)
		}
	}
}

func loadSplit(dir string, cache *dataset.Cache) (*dataset.Dataset, error) {
	if url := verifier.CorpusURL(); url != "" {
		if err := dataset.Fetch(url+"/"+dir, dir); err != nil {
			return nil, err
		}
	}
	opts := []dataset.Option{}
	if cache != nil {
		opts = append(opts, dataset.WithCache(cache))
	}
	return dataset.Load(dir, opts...)
}

func main() {
	if _, ok := os.LookupEnv("ENV"); !ok {
		os.Setenv("ENV", "development")
	}
	loadEnv(".env."+os.Getenv("ENV")+".local", ".env."+os.Getenv("ENV"), ".env.local", ".env")

	params := verifier.NewParamsFromDefaults()
	params.Write(os.Stdout, "Model Config")

	var cache *dataset.Cache
	if path := verifier.CacheDir(); path != "" {
		c, err := dataset.OpenCache(path)
		if err != nil {
			log.Fatalf("error opening feature cache: %v", err)
		}
		defer c.Close()
		cache = c
	}

	train, err := loadSplit(verifier.TrainDir(), cache)
	if err != nil {
		log.Fatalf("error loading training split: %v", err)
	}
	val, err := loadSplit(verifier.ValDir(), cache)
	if err != nil {
		log.Fatalf("error loading validation split: %v", err)
	}
	log.Printf("loaded %d training and %d validation utterances", train.Size(), val.Size())

	logs := verifier.NewLogSink()
	sinks := []verifier.Sink{logs}
	if _, ok := os.LookupEnv("MONGO_URL"); ok {
		db, err := runs.ConnectMongo()
		if err != nil {
			log.Fatalf("error connecting to MongoDB: %v", err)
		}
		sink, err := runs.NewMongoSink(db, time.Now().Format(time.RFC3339))
		if err != nil {
			log.Fatalf("error creating metric sink: %v", err)
		}
		sinks = append(sinks, sink)
	}

	ctrl, err := verifier.NewController(params, sinks...)
	if err != nil {
		log.Fatalf("error constructing model: %v", err)
	}
	defer ctrl.Close()

	pw := progress.NewWriter()
	pw.SetMessageLength(40)
	pw.SetSortBy(progress.SortByPercentDsc)
	pw.SetStyle(progress.StyleDefault)
	pw.SetTrackerLength(15)
	pw.SetTrackerPosition(progress.PositionRight)
	pw.SetUpdateFrequency(time.Millisecond * 100)
	pw.Style().Colors = progress.StyleColorsExample
	pw.Style().Options.PercentFormat = "%2.0f%%"
	go pw.Render()

	if err := verifier.Train(pw, ctrl, train, val, logs, params); err != nil {
		log.Fatalf("training error: %v", err)
	}

	if dir := verifier.TestDir(); dir != "" {
		test, err := loadSplit(dir, cache)
		if err != nil {
			log.Fatalf("error loading test split: %v", err)
		}
		if err := verifier.Test(pw, ctrl, test, params); err != nil {
			log.Fatalf("test error: %v", err)
		}
	}

	pw.Stop()
	for pw.IsRenderInProgress() {
		time.Sleep(100 * time.Millisecond)
	}

	fmt.Println()
	logs.Flush(os.Stdout, "Run Metrics")
}
