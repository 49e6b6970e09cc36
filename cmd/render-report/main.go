package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joelkehle/otreport/internal/config"
	"github.com/joelkehle/otreport/internal/render"
	"github.com/joelkehle/otreport/internal/report"
)

func main() {
	inputPath := flag.String("input", "", "Path to saved report document JSON")
	outputPath := flag.String("output", "", "Path to write markdown (defaults to stdout)")
	pdfPath := flag.String("pdf", "", "Optional path to write a PDF rendering")
	xlsxPath := flag.String("xlsx", "", "Optional path to write the score tables workbook")
	chromePath := flag.String("chrome", "", "Chrome or Chromium binary for PDF rendering")
	flag.Parse()

	if *inputPath == "" {
		log.Fatal("missing required -input")
	}

	in, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Fatalf("read input: %v", err)
	}

	var doc report.Document
	if err := json.Unmarshal(in, &doc); err != nil {
		log.Fatalf("decode input JSON: %v", err)
	}
	if err := report.Validate(doc); err != nil {
		log.Fatalf("invalid document: %v", err)
	}

	if err := writeMarkdown(*outputPath, render.Markdown(doc)); err != nil {
		log.Fatalf("write markdown: %v", err)
	}
	if *pdfPath != "" {
		cfg := config.Default().Render
		if *chromePath != "" {
			cfg.ChromePath = *chromePath
		}
		pdf, err := render.NewPDFRenderer(cfg).Render(context.Background(), doc)
		if err != nil {
			log.Fatalf("render pdf: %v", err)
		}
		if err := os.WriteFile(*pdfPath, pdf, 0o644); err != nil {
			log.Fatalf("write pdf: %v", err)
		}
	}
	if *xlsxPath != "" {
		book, err := render.ScoreWorkbook(doc)
		if err != nil {
			log.Fatalf("build workbook: %v", err)
		}
		if err := os.WriteFile(*xlsxPath, book, 0o644); err != nil {
			log.Fatalf("write workbook: %v", err)
		}
	}
}

func writeMarkdown(outputPath, markdown string) error {
	if outputPath == "" {
		_, err := fmt.Print(markdown)
		return err
	}
	return os.WriteFile(outputPath, []byte(markdown), 0o644)
}
