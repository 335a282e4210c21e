// cmd/tools/search-query/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"webhook-search/internal/common/config"
	"webhook-search/internal/common/logger"
	"webhook-search/internal/common/validation"
	"webhook-search/internal/normalize"
	"webhook-search/internal/render"
	"webhook-search/internal/search"
	"webhook-search/internal/webhook"
	"webhook-search/pkg/registry"
)

func main() {
	config.LoadEnvFile()

	htmlCmd := flag.NewFlagSet("html", flag.ExitOnError)
	jsonCmd := flag.NewFlagSet("json", flag.ExitOnError)
	normalizeCmd := flag.NewFlagSet("normalize", flag.ExitOnError)

	htmlURL, htmlTimeout, htmlVerbose := queryFlags(htmlCmd)
	htmlPage := htmlCmd.Bool("page", false, "Print the full page instead of the fragments")
	jsonURL, jsonTimeout, jsonVerbose := queryFlags(jsonCmd)
	file := normalizeCmd.String("file", "-", "Saved webhook response, - for stdin")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "html":
		htmlCmd.Parse(os.Args[2:])
		out := runQuery(htmlCmd, *htmlURL, *htmlTimeout, *htmlVerbose)
		renderer := render.MustNew("")
		data := render.PageData{Query: out.Query, View: out.View}
		if *htmlPage {
			page, err := renderer.Page(data)
			exitOnErr(err)
			os.Stdout.Write(page)
			return
		}
		frags, err := renderer.Fragments(data)
		exitOnErr(err)
		fmt.Printf("<!-- answer -->\n%s\n<!-- sources -->\n%s\n<!-- results -->\n%s\n", frags.Answer, frags.Sources, frags.Results)

	case "json":
		jsonCmd.Parse(os.Args[2:])
		out := runQuery(jsonCmd, *jsonURL, *jsonTimeout, *jsonVerbose)
		printJSON(out.View)

	case "normalize":
		normalizeCmd.Parse(os.Args[2:])
		raw, err := readInput(*file)
		exitOnErr(err)
		view, err := normalize.Parse(raw)
		exitOnErr(err)
		printJSON(view)

	case "help", "-h", "--help":
		help()

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		help()
		os.Exit(1)
	}
}

func queryFlags(fs *flag.FlagSet) (url *string, timeout *time.Duration, verbose *bool) {
	url = fs.String("url", os.Getenv("WEBHOOK_URL"), "Webhook URL (defaults to $WEBHOOK_URL)")
	timeout = fs.Duration("timeout", webhook.DefaultTimeout, "Request timeout")
	verbose = fs.Bool("v", false, "Log to stderr")
	return url, timeout, verbose
}

func runQuery(fs *flag.FlagSet, url string, timeout time.Duration, verbose bool) *search.Outcome {
	query := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(query) == "" || url == "" {
		fmt.Fprintf(os.Stderr, "Error: a query and -url (or WEBHOOK_URL) are required.\n")
		fs.Usage()
		os.Exit(1)
	}

	log := logger.NewNoOpLogger()
	if verbose {
		log = logger.NewStructured("debug", "console")
	}

	client, err := webhook.NewClient(webhook.WithBaseURL(url), webhook.WithTimeout(timeout))
	exitOnErr(err)

	var opts []search.Option
	if v, err := searchValidator(); err == nil {
		opts = append(opts, search.WithValidator(v))
	}

	out, err := search.NewService(client, log, opts...).Search(context.Background(), query)
	exitOnErr(err)
	return out
}

func searchValidator() (*validation.Validator, error) {
	reg, err := registry.Default()
	if err != nil {
		return nil, err
	}
	act, err := reg.Find(registry.SearchActivityID)
	if err != nil {
		return nil, err
	}
	return validation.NewValidator(act.InputSchema)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	exitOnErr(enc.Encode(v))
}

func exitOnErr(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func help() {
	fmt.Println("Usage: search-query <command> [options] [query]")
	fmt.Println("\nCommands:")
	fmt.Println("  html       Run a query and print the rendered HTML fragments (-page for the full page)")
	fmt.Println("  json       Run a query and print the normalized view as JSON")
	fmt.Println("  normalize  Normalize a saved webhook response (-file, default stdin)")
	fmt.Println("\nExamples:")
	fmt.Println("  search-query html -url https://hooks.example.com/search renewable energy")
	fmt.Println("  search-query normalize -file response.json")
}
