package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/annazecevic/catalog-service/config"
	"github.com/annazecevic/catalog-service/dto"
	"github.com/annazecevic/catalog-service/logger"
	"github.com/annazecevic/catalog-service/repository"
	"github.com/annazecevic/catalog-service/service"
	"github.com/annazecevic/catalog-service/storage"
)

func readBatch(path string) ([]dto.SongDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch: %w", err)
	}

	var req dto.ImportBatchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse batch %s: %w", path, err)
	}
	if len(req.Songs) == 0 {
		return nil, fmt.Errorf("batch %s contains no songs", path)
	}
	return req.Songs, nil
}

// checkBatch reports descriptors that would be skipped or rejected.
func checkBatch(songs []dto.SongDescriptor) []string {
	var problems []string
	for i, d := range songs {
		switch {
		case strings.TrimSpace(d.URL) == "":
			problems = append(problems, fmt.Sprintf("#%d %q: no url, will be skipped", i, d.Name))
		case strings.TrimSpace(d.Name) == "":
			problems = append(problems, fmt.Sprintf("#%d: name is required", i))
		case strings.TrimSpace(d.Singer) == "":
			problems = append(problems, fmt.Sprintf("#%d %q: singer is required", i, d.Name))
		}
	}
	return problems
}

func runImport(ctx context.Context, cfg *config.Config, path string, dryRun bool, out io.Writer) error {
	songs, err := readBatch(path)
	if err != nil {
		return err
	}

	if dryRun {
		problems := checkBatch(songs)
		fmt.Fprintf(out, "%d descriptors, %d problems\n", len(songs), len(problems))
		for _, p := range problems {
			fmt.Fprintf(out, "  %s\n", p)
		}
		return nil
	}

	client, err := repository.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	backend, err := storage.ConnectHDFS(cfg.HDFSNamenode, cfg.HDFSBaseDir, 3)
	if err != nil {
		return fmt.Errorf("failed to connect to HDFS: %w", err)
	}
	defer backend.Close()

	store, err := storage.NewStore(backend, storage.Options{
		PublicURL:    cfg.BlobPublicURL,
		DurableHost:  cfg.BlobDurableHost,
		FetchTimeout: cfg.BlobFetchTimeout,
		FetchRate:    cfg.BlobFetchRate,
		FetchBurst:   cfg.BlobFetchBurst,
	})
	if err != nil {
		return err
	}

	repo := repository.NewCatalogRepository(client.Database(cfg.MongoDatabase))
	result, err := service.NewImportService(repo, store).ImportBatch(ctx, songs)
	if err != nil {
		return fmt.Errorf("import interrupted: %w", err)
	}

	fmt.Fprintf(out, "batch %s: imported %d, skipped %d, failed %d\n", result.BatchID, result.ImportedCount, result.Skipped, len(result.Failures))
	for _, f := range result.Failures {
		fmt.Fprintf(out, "  #%d %q: [%s] %s\n", f.Index, f.Name, f.Err.Kind, f.Err.Error())
	}
	return nil
}

type verifyReport struct {
	Total        int
	InvalidLines []int
}

// verifyEntries checks every JSON line of r against the logger's key. Lines
// that are not log entries count as invalid.
func verifyEntries(r io.Reader, l *logger.Logger) (*verifyReport, error) {
	report := &verifyReport{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		report.Total++

		var entry logger.LogEntry
		if err := json.Unmarshal([]byte(text), &entry); err != nil || !l.Verify(entry) {
			report.InvalidLines = append(report.InvalidLines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	return report, nil
}
