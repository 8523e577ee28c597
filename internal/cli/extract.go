package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/callfacts/internal/logging"
	"github.com/ppiankov/callfacts/internal/pipeline"
	"github.com/ppiankov/callfacts/internal/store"
)

var (
	question      string
	documentsFile string
	outputJSON    bool
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract [url...]",
	Short: "Extract facts from call logs once and print them",
	Long: `Extract runs a single submission in the terminal. Documents are read in
the order given: positional URLs first, then the lines of --documents.

Example:
  callfacts extract -q "What is the order status?" https://logs.example.com/1.txt https://logs.example.com/2.txt
  callfacts extract -q "Who called?" --documents calls.txt --json`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&question, "question", "q", "", "question to answer (required)")
	extractCmd.Flags().StringVar(&documentsFile, "documents", "", "file with one document URL per line (- for stdin)")
	extractCmd.Flags().BoolVar(&outputJSON, "json", false, "print the final record as JSON")
	_ = extractCmd.MarkFlagRequired("question")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	// Terminal runs keep the console quiet unless asked
	if !verbose {
		cfg.Log.Level = "warn"
	}
	cfg.Log.File = ""

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	documents := append([]string{}, args...)
	if documentsFile != "" {
		listed, err := pipeline.ReadDocumentList(documentsFile)
		if err != nil {
			return fmt.Errorf("read documents: %w", err)
		}
		documents = append(documents, listed...)
	}

	st := store.NewMemoryStore(0)
	pipe, _, err := buildPipeline(cfg, st, logger)
	if err != nil {
		return err
	}

	const sessionID = "cli"
	_, procErr := pipe.Process(context.Background(), pipeline.Submission{
		SessionID: sessionID,
		Question:  question,
		Documents: documents,
	})

	record, err := store.Lookup(context.Background(), st, sessionID)
	if err != nil {
		return err
	}

	if outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(record); err != nil {
			return err
		}
	} else {
		fmt.Printf("Question: %s\n\n", record.Question)
		for _, fact := range record.Facts {
			fmt.Println(fact)
		}
	}

	var subErr *pipeline.SubmissionError
	if errors.As(procErr, &subErr) {
		return fmt.Errorf("%s (%v)", subErr.Message(), subErr.Err)
	}
	return procErr
}
