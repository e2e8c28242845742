// Command bulkload ingests a directory of .txt court rulings into a running
// service instance.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type ingestRequest struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

type ingestReport struct {
	DocumentID    string   `json:"document_id"`
	IndexedChunks int      `json:"indexed_chunks"`
	SkippedChunks int      `json:"skipped_chunks"`
	Warnings      []string `json:"warnings"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the court search service")
	dir := flag.String("dir", ".", "directory containing .txt ruling files")
	concurrency := flag.Int("concurrency", 4, "number of concurrent uploads")
	flag.Parse()

	files, err := listTxtFiles(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "no .txt files found under %s\n", *dir)
		os.Exit(1)
	}

	fmt.Printf("Uploading %d files from %s to %s\n\n", len(files), *dir, *baseURL)
	start := time.Now()

	client := &http.Client{Timeout: 2 * time.Minute}
	var uploaded, failed, skippedChunks atomic.Int64

	var g errgroup.Group
	g.SetLimit(*concurrency)
	for _, path := range files {
		g.Go(func() error {
			report, err := upload(client, *baseURL, path)
			if err != nil {
				failed.Add(1)
				fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", filepath.Base(path), err)
				return nil
			}
			uploaded.Add(1)
			skippedChunks.Add(int64(report.SkippedChunks))
			status := ""
			if report.SkippedChunks > 0 {
				status = fmt.Sprintf(" (%d chunks skipped)", report.SkippedChunks)
			}
			fmt.Printf("OK   %s -> %s, %d chunks%s\n",
				filepath.Base(path), report.DocumentID, report.IndexedChunks, status)
			return nil
		})
	}
	g.Wait()

	fmt.Printf("\nDone in %s: %d uploaded, %d failed, %d chunks skipped\n",
		time.Since(start).Round(time.Millisecond), uploaded.Load(), failed.Load(), skippedChunks.Load())
	if failed.Load() > 0 {
		os.Exit(1)
	}
}

func listTxtFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".txt") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func upload(client *http.Client, baseURL, path string) (*ingestReport, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(ingestRequest{
		Filename: filepath.Base(path),
		Text:     string(text),
	})
	if err != nil {
		return nil, err
	}

	resp, err := client.Post(baseURL+"/api/v1/documents", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var report ingestReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &report, nil
}
