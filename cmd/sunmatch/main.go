package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"sunmatch/internal"
	"sunmatch/internal/catalog"
	"sunmatch/internal/config"
	"sunmatch/internal/connectors"
	gmailconnector "sunmatch/internal/connectors/gmail"
	imapconnector "sunmatch/internal/connectors/imap"
	"sunmatch/internal/listener"
	"sunmatch/internal/pipeline"
	"sunmatch/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	logger, err := buildLogger()
	must(err)
	defer func() { _ = logger.Sync() }()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "catalog:sync":
		svc := catalog.NewSyncService(db, cfg, logger)
		count, err := svc.InitialSync(context.Background())
		must(err)
		fmt.Printf("catalog sync complete: %d products\n", count)
	case "catalog:incremental-sync":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		hours := fs.Int("hours", 24, "lookback window in hours")
		_ = fs.Parse(os.Args[2:])
		svc := catalog.NewSyncService(db, cfg, logger)
		count, err := svc.IncrementalSync(context.Background(), *hours)
		must(err)
		fmt.Printf("incremental sync complete hours=%d products=%d\n", *hours, count)
	case "catalog:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "catalog file (.xlsx or .json)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}
		products, err := catalog.ImportFile(*file, logger)
		must(err)
		must(db.UpsertProducts(products))
		fmt.Printf("imported %d products from %s\n", len(products), *file)
	case "catalog:search":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		query := fs.String("query", "", "free-text equipment query")
		limit := fs.Int("limit", cfg.UnscopedLimit, "result cap for brand-unscoped queries")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*query) == "" {
			must(fmt.Errorf("--query is required"))
		}
		products, err := db.ListProducts()
		must(err)
		idx := catalog.BuildIndex(products, catalog.NewBrandAliasTable(), logger)
		results := idx.Search(*query, *limit)
		if len(results) == 0 {
			fmt.Println("no catalog products matched")
			return
		}
		for _, r := range results {
			brandNote := ""
			if r.Brand.Tier != catalog.TierNone {
				brandNote = fmt.Sprintf(" brand=%s/%s", r.Brand.Canonical, r.Brand.Tier)
			}
			fmt.Printf("%-8s %-14s %s %s score=%.2f%s\n",
				r.Product.Type, r.Product.ID, r.Product.Brand, r.Product.Model, r.Score, brandNote)
		}
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "gmail", "gmail|imap")
		label := fs.String("label", "INBOX", "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := makeConnector(cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawDocDir, conn, logger)
		result, err := fetch.FetchAndStore(*label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "gmail", "gmail|imap")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])
		processor, err := pipeline.NewProcessingService(db, cfg, logger)
		must(err)
		if strings.TrimSpace(*messageID) != "" {
			res, err := processor.ProcessByProviderMessageID(*provider, *messageID)
			must(err)
			fmt.Printf("processed document id=%d candidates=%d skipped=%v\n", res.DocumentID, res.Candidates, res.Skipped)
			return
		}
		processedDocs, candidates, err := processor.ProcessPending(*batch, *provider)
		must(err)
		fmt.Printf("processed pending documents=%d candidates=%d\n", processedDocs, candidates)
	case "mail:listen":
		s := listener.NewService(db, cfg, logger)
		must(s.Run(context.Background()))
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		documentID := fs.Int("documentId", 0, "internal document id")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if *documentID == 0 || strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--documentId and --out are required"))
		}
		rows, err := db.GetExportRows(*documentID)
		must(err)
		if len(rows) == 0 {
			must(fmt.Errorf("no export rows for documentId=%d", *documentID))
		}
		must(pipeline.ExportRowsToXLSX(rows, *out))
		fmt.Printf("exported %d rows to %s\n", len(rows), *out)
	case "match":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "proposal file (.pdf, .eml or .txt)")
		output := fs.String("output", "", "optional output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}

		extracted, err := pipeline.ExtractFile(*input)
		must(err)

		products, err := db.ListProducts()
		must(err)
		idx := catalog.BuildIndex(products, catalog.NewBrandAliasTable(), logger)
		engine, err := pipeline.NewEngine(idx, cfg, logger)
		must(err)
		result, err := engine.MatchDocument(extracted.Text, extracted.Method)
		must(err)

		rows := pipeline.FlattenResult(0, result)
		if strings.TrimSpace(*output) != "" {
			must(pipeline.ExportRowsToXLSX(rows, *output))
			fmt.Printf("match done rows=%d output=%s\n", len(rows), *output)
			return
		}
		for _, row := range rows {
			note := ""
			if row.NeedsConfirmation {
				note = " (needs confirmation)"
			}
			fmt.Printf("%-8s #%d %s %s conf=%.2f evidence=%d%s\n",
				row.ProductType, row.Rank, row.Brand, row.Model, row.Confidence, row.EvidenceCount, note)
		}
		printFields(result)
	default:
		usage()
		os.Exit(1)
	}
}

func printFields(result *internal.DocumentMatchResult) {
	if result.SystemSizeKW != nil {
		fmt.Printf("system size: %.2f kW (conf=%.2f)\n", result.SystemSizeKW.Value, result.SystemSizeKW.Confidence)
	}
	if result.TotalCost != nil {
		fmt.Printf("total cost: $%.2f (conf=%.2f)\n", result.TotalCost.Value, result.TotalCost.Confidence)
	}
	if result.Postcode != nil {
		fmt.Printf("postcode: %s (conf=%.2f)\n", result.Postcode.Value, result.Postcode.Confidence)
	}
	if result.Installer != nil {
		fmt.Printf("installer: %s (conf=%.2f)\n", result.Installer.Value, result.Installer.Confidence)
	}
}

func makeConnector(cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func buildLogger() (*zap.Logger, error) {
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func usage() {
	fmt.Println("usage: sunmatch <command>")
	fmt.Println("commands:")
	fmt.Println("  catalog:sync")
	fmt.Println("  catalog:incremental-sync --hours=24")
	fmt.Println("  catalog:import --file=./catalog.xlsx")
	fmt.Println("  catalog:search --query=\"goodwe 6kw hybrid\" [--limit=50]")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process --provider=gmail|imap [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
	fmt.Println("  export:xlsx --documentId=1 --out=./out/result.xlsx")
	fmt.Println("  match --input=./proposal.pdf [--output=./out/result.xlsx]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
