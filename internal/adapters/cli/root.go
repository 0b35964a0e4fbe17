package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/anvesana/internal/core/domain"
	"github.com/kirillkom/anvesana/internal/core/ports"
)

// Corpus runs crawl and ingestion synchronously.
type Corpus interface {
	ports.CorpusIngestor
	Crawl(ctx context.Context) (*domain.CrawlReport, error)
}

type Services struct {
	Corpus    Corpus
	Retriever ports.PassageRetriever
	Queries   ports.QueryService
}

// Opener builds the services for one command. withIndex asks for a loaded
// embedder and bound collection; crawl does not need them.
type Opener func(ctx context.Context, withIndex bool) (*Services, func(), error)

func NewRootCommand(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "anvesana",
		Short:         "Crawl a wiki, index its passages and query them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newIngestCommand(open),
		newCrawlCommand(open),
		newQueryCommand(open),
	)
	return root
}

func newIngestCommand(open Opener) *cobra.Command {
	var recrawl bool
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Build the collection from the snapshot, crawling when it is missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, closeFn, err := open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := services.Corpus.Run(cmd.Context(), recrawl)
			if err != nil {
				return fmt.Errorf("ingest failed: %w", err)
			}
			source := "crawl"
			if report.FromSnapshot {
				source = "snapshot"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "collection %q rebuilt from %s: %d documents, %d passages, %d failed fetches\n",
				report.Collection, source, report.Documents, report.Passages, report.FailedDocuments)
			return nil
		},
	}
	cmd.Flags().BoolVar(&recrawl, "recrawl", false, "ignore the snapshot and crawl the source again")
	return cmd
}

func newCrawlCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the source and overwrite the snapshot without indexing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, closeFn, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := services.Corpus.Crawl(cmd.Context())
			if err != nil {
				return fmt.Errorf("crawl failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "listed %d, fetched %d, empty %d, failed %d\n",
				report.Listed, report.Fetched, report.Empty, report.Failed)
			return nil
		},
	}
}

func newQueryCommand(open Opener) *cobra.Command {
	var (
		k       int
		fetchK  int
		similar bool
		answer  bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Retrieve diverse passages for a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return errors.New("question is empty")
			}
			if similar && answer {
				return errors.New("--similar and --answer cannot be combined")
			}

			services, closeFn, err := open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer closeFn()

			if answer {
				result, err := services.Queries.Answer(cmd.Context(), question, k, fetchK)
				if err != nil {
					return fmt.Errorf("answer failed: %w", err)
				}
				if asJSON {
					return printJSON(cmd, result)
				}
				fmt.Fprintln(cmd.OutOrStdout(), result.Text)
				if citations := result.CitationsMarkdown(); citations != "" {
					fmt.Fprintln(cmd.OutOrStdout())
					fmt.Fprint(cmd.OutOrStdout(), citations)
				}
				return nil
			}

			var passages []domain.RetrievedPassage
			if similar {
				passages, err = services.Retriever.Similar(cmd.Context(), question, k)
			} else {
				passages, err = services.Retriever.Retrieve(cmd.Context(), question, k, fetchK)
			}
			if err != nil {
				return fmt.Errorf("retrieve failed: %w", err)
			}
			if asJSON {
				return printJSON(cmd, passages)
			}
			printPassages(cmd, passages)
			return nil
		},
	}
	cmd.Flags().IntVar(&k, "k", 0, "number of passages (0 uses the configured default)")
	cmd.Flags().IntVar(&fetchK, "fetch-k", 0, "candidate pool size for MMR (0 uses the configured default)")
	cmd.Flags().BoolVar(&similar, "similar", false, "plain similarity search instead of MMR")
	cmd.Flags().BoolVar(&answer, "answer", false, "synthesize an answer with citations")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func printPassages(cmd *cobra.Command, passages []domain.RetrievedPassage) {
	if len(passages) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No passages found.")
		return
	}
	for i, p := range passages {
		fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s (%.3f)\n", i+1, p.Title, p.Score)
		if p.Link != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", p.Link)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "    %s\n\n", strings.ReplaceAll(p.Text, "\n", "\n    "))
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
