package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/target/repo-analyzer/internal/bootstrap"
	"github.com/target/repo-analyzer/internal/domain/model"
)

// errAnalysisFailed makes the process exit non-zero after the failed job has been printed.
var errAnalysisFailed = errors.New("analysis failed")

func analyzeAction(ctx context.Context, cmd *cli.Command, out io.Writer) error {
	repoURL := strings.TrimSpace(cmd.Args().First())
	if repoURL == "" {
		return errors.New("analyze requires a repository URL argument")
	}

	cfg, logger, err := loadRuntime(cmd)
	if err != nil {
		return err
	}

	svc, err := bootstrap.NewStandaloneAnalysis(cfg, logger)
	if err != nil {
		return err
	}

	job, err := svc.Analyze(ctx, repoURL)
	if err != nil {
		return err
	}
	return writeJob(out, job)
}

// writeJob prints job as indented JSON and reports errAnalysisFailed for a Failed job.
func writeJob(out io.Writer, job model.Job) error {
	if job.OutputFiles == nil {
		job.OutputFiles = []string{}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(job); err != nil {
		return fmt.Errorf("write job: %w", err)
	}
	if job.Status == model.JobStatusFailed {
		return errAnalysisFailed
	}
	return nil
}
