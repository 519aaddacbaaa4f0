package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/joho/godotenv"

	"github.com/pixelsync/livedoc/livedoc"
)

const LiveDocCtlVersion = "0.0.1"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := `Live document control.

The default urls are:
    api_url: https://api.pixelsync.dev/v1

The access token is read from --token, the config file, or the
LIVEDOC_TOKEN environment variable (a .env file is honored).

Usage:
    livedocctl fetch [--api_url=<api_url>] [--token=<token>] [--config=<config>]
        --doc=<doc_id>
        --node=<node_name>...
        --out=<path>
    livedocctl info <path>
    livedocctl watch [--api_url=<api_url>] [--token=<token>] [--config=<config>]
        [--poll=<poll>]
        --doc=<doc_id>
        --node=<node_name>...
        [--out=<path>]

Options:
    -h --help              Show this screen.
    --version              Show version.
    --api_url=<api_url>
    --token=<token>        Access token for the remote source.
    --config=<config>      Config file path (hcl).
    --doc=<doc_id>         Document id, optionally id@version.
    --node=<node_name>     Named root node to decode. Repeatable.
    --out=<path>           Snapshot output path.
    --poll=<poll>          Poll interval, e.g. 5s.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], LiveDocCtlVersion)
	if err != nil {
		panic(err)
	}

	if fetch_, _ := opts.Bool("fetch"); fetch_ {
		fetch(opts)
	} else if info_, _ := opts.Bool("info"); info_ {
		info(opts)
	} else if watch_, _ := opts.Bool("watch"); watch_ {
		watch(opts)
	}
}

func loadConfig(opts docopt.Opts) *livedoc.Config {
	config := &livedoc.Config{}
	if configPath, err := opts.String("--config"); err == nil && configPath != "" {
		loadedConfig, err := livedoc.LoadConfig(configPath)
		if err != nil {
			Err.Fatalf("Could not load config (%s).", err)
		}
		config = loadedConfig
	}

	if apiUrl, err := opts.String("--api_url"); err == nil && apiUrl != "" {
		config.BaseUrl = apiUrl
	}
	if token, err := opts.String("--token"); err == nil && token != "" {
		config.Token = token
	}
	if config.Token == "" {
		godotenv.Load()
		config.Token = os.Getenv("LIVEDOC_TOKEN")
	}
	return config
}

func parseDoc(opts docopt.Opts) livedoc.DocumentId {
	docIdStr, _ := opts.String("--doc")
	documentId, err := livedoc.ParseDocumentId(docIdStr)
	if err != nil {
		Err.Fatalf("Invalid doc id (%s).", err)
	}
	return documentId
}

func parseQueries(opts docopt.Opts) []livedoc.NodeQuery {
	nodeNames, _ := opts["--node"].([]string)
	queries := []livedoc.NodeQuery{}
	for _, nodeName := range nodeNames {
		queries = append(queries, livedoc.QueryName(nodeName))
	}
	return queries
}

// one-shot fetch and save
func fetch(opts docopt.Opts) {
	config := loadConfig(opts)
	documentId := parseDoc(opts)
	queries := parseQueries(opts)
	outPath, _ := opts.String("--out")

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := livedoc.NewApiWithContext(cancelCtx, config.ApiUrl(), config.Credential())
	defer api.Close()

	response, fetchErr := api.Fetch(cancelCtx, &livedoc.FetchRequest{
		DocumentId: documentId,
		Queries:    queries,
	})
	if fetchErr != nil {
		Err.Fatalf("Fetch failed (%s).", fetchErr)
	}
	if response.Document == nil {
		Err.Fatalf("Fetch returned no document.")
	}

	payload := response.Document
	header := payload.Header
	if payload.SessionToken != "" {
		header.SessionToken = payload.SessionToken
	}
	doc := livedoc.NewDecodedDocument(
		documentId,
		header,
		payload.Views,
		payload.Branches,
		payload.Images,
		nil,
	)
	if err := livedoc.SaveDocument(outPath, doc); err != nil {
		Err.Fatalf("Could not save snapshot (%s).", err)
	}
	Out.Printf("Saved %s (version %s) to %s", documentId, doc.Header.Version, outPath)
}

// print a snapshot header
func info(opts docopt.Opts) {
	snapshotPath, _ := opts.String("<path>")
	header, err := livedoc.ReadSnapshotHeader(snapshotPath)
	if err != nil {
		Err.Fatalf("Could not read snapshot (%s).", err)
	}
	Out.Printf("%s", header)
}

// subscribe and report updates until interrupted
func watch(opts docopt.Opts) {
	config := loadConfig(opts)
	documentId := parseDoc(opts)
	queries := parseQueries(opts)
	outPath, _ := opts.String("--out")

	settings, err := config.LiveSyncSettings()
	if err != nil {
		Err.Fatalf("Invalid config (%s).", err)
	}
	if poll, err := opts.String("--poll"); err == nil && poll != "" {
		pollInterval, err := time.ParseDuration(poll)
		if err != nil {
			Err.Fatalf("Invalid poll interval (%s).", err)
		}
		settings.PollInterval = pollInterval
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := livedoc.NewApiWithContext(cancelCtx, config.ApiUrl(), config.Credential())
	defer api.Close()

	store := livedoc.NewDocumentStore()
	registry := livedoc.NewSubscriptionRegistry()

	registry.Subscribe(&livedoc.Subscription{
		DocumentId: documentId,
		ConsumerId: livedoc.NewConsumerId(),
		Queries:    queries,
		SavePath:   outPath,
		OnUpdate: func(doc *livedoc.DecodedDocument, snapshot []byte) {
			Out.Printf(
				"%s updated: version %s, last modified %s",
				doc.DocumentId,
				doc.Header.Version,
				doc.Header.LastModified,
			)
		},
	})

	liveSync := livedoc.NewLiveSync(cancelCtx, store, registry, api, settings)
	defer liveSync.Close()

	if config.PushUrl != "" {
		pushChannel := livedoc.NewPushChannelWithDefaults(
			cancelCtx,
			config.PushUrl,
			config.Credential(),
			liveSync,
		)
		defer pushChannel.Close()
	}

	liveSync.TriggerFetch(documentId)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	fmt.Println()
	Out.Printf("Stopped.")
}
