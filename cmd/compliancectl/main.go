package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"compliance-scanner/analyzer"
	"compliance-scanner/batch"
	"compliance-scanner/cache"
	"compliance-scanner/compliance"
	"compliance-scanner/config"
	"compliance-scanner/fetcher"
	"compliance-scanner/scanner"
	"compliance-scanner/scoring"
)

const banner = `
                           _ _                           _   _
  ___ ___  _ __ ___  _ __ | (_) __ _ _ __   ___ ___  ___| |_| |
 / __/ _ \| '_ ' _ \| '_ \| | |/ _' | '_ \ / __/ _ \/ __| __| |
| (_| (_) | | | | | | |_) | | | (_| | | | | (_|  __/ (__| |_| |
 \___\___/|_| |_| |_| .__/|_|_|\__,_|_| |_|\___\___|\___|\__|_|
                    |_|     GDPR/CCPA website compliance scanner
`

func main() {
	targetsArg := flag.String("t", "", "Target URL or file containing URLs (one per line)")
	rulesPath := flag.String("rules", "", "Path to a signal rules YAML file (default: embedded rules)")
	outputFile := flag.String("o", "", "Output JSON report file")
	concurrency := flag.Int("c", 5, "Number of concurrent workers")
	timeout := flag.Int("timeout", 10, "HTTP request timeout in seconds")
	silent := flag.Bool("s", false, "Suppress banner and progress output")

	flag.Parse()

	if !*silent {
		fmt.Fprint(os.Stderr, banner+"\n")
	}

	if *targetsArg == "" {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) != 0 {
			flag.Usage()
			os.Exit(1)
		}
	}

	rules, err := analyzer.LoadRules(*rulesPath)
	if err != nil {
		color.Red("[-] Error loading signal rules: %v", err)
		os.Exit(1)
	}

	targets, err := loadTargets(*targetsArg)
	if err != nil {
		color.Red("[-] %v", err)
		os.Exit(1)
	}
	if len(targets) == 0 {
		color.Red("[-] No targets to scan")
		os.Exit(1)
	}

	if !*silent {
		color.Cyan("[+] Loaded %d targets", len(targets))
		color.Blue("[+] Starting scan with %d workers...", *concurrency)
	}

	cfg := config.Load()
	cfg.Scanner.Timeout = time.Duration(*timeout) * time.Second

	fetch := fetcher.NewWithBackend(cfg)
	engine := scoring.New(scoring.WeightsFromConfig(cfg.Scoring))
	resultCache := cache.New(cfg.Cache.TTL, cfg.Cache.MaxItems)
	svc := scanner.New(fetch, analyzer.New(rules, fetch, cfg.Crawl.MaxCandidates), engine, resultCache)
	orchestrator := batch.New(svc, resultCache, *concurrency)

	var bar *progressbar.ProgressBar
	if !*silent {
		bar = progressbar.Default(int64(len(targets)))
	}

	job := orchestrator.Run(context.Background(), targets, func(p compliance.Progress) {
		if bar != nil {
			bar.Add(1)
		}
	})

	if !*silent {
		fmt.Fprintln(os.Stderr)
		printSummary(job)
	}

	jsonData, _ := json.MarshalIndent(job, "", "  ")
	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, jsonData, 0644); err != nil {
			color.Red("[-] Error writing report: %v", err)
			os.Exit(1)
		}
		if !*silent {
			color.Green("[+] Report written to %s", *outputFile)
		}
	} else {
		fmt.Println(string(jsonData))
	}

	if job.Failed > 0 {
		os.Exit(2)
	}
}

func loadTargets(arg string) ([]string, error) {
	var targets []string

	readLines := func(r *bufio.Scanner) {
		for r.Scan() {
			if line := strings.TrimSpace(r.Text()); line != "" {
				targets = append(targets, line)
			}
		}
	}

	if arg == "" {
		readLines(bufio.NewScanner(os.Stdin))
		return targets, nil
	}

	if _, err := os.Stat(arg); err == nil {
		file, err := os.Open(arg)
		if err != nil {
			return nil, fmt.Errorf("reading targets file: %w", err)
		}
		defer file.Close()
		readLines(bufio.NewScanner(file))
		return targets, nil
	}

	lower := strings.ToLower(arg)
	for _, ext := range []string{".txt", ".list", ".csv"} {
		if strings.HasSuffix(lower, ext) {
			return nil, fmt.Errorf("input file not found: %s", arg)
		}
	}

	return append(targets, arg), nil
}

func printSummary(job *compliance.BatchJob) {
	for _, item := range job.Items {
		switch {
		case item.Err != "":
			color.Red("[-] %s: %s", item.URL, item.Err)
		case item.Result == nil:
			color.Yellow("[?] %s: no result", item.URL)
		case item.Result.Status == compliance.Compliant:
			color.Green("[+] %s: %d/100 (%s) %s", item.URL, item.Result.Score, item.Result.Grade, item.Result.Status)
		case item.Result.Status == compliance.NeedsImprovement:
			color.Yellow("[~] %s: %d/100 (%s) %s", item.URL, item.Result.Score, item.Result.Grade, item.Result.Status)
		default:
			color.Red("[-] %s: %d/100 (%s) %s", item.URL, item.Result.Score, item.Result.Grade, item.Result.Status)
		}
	}
	color.Cyan("[+] Done: %d scanned, %d failed", job.Completed, job.Failed)
}
