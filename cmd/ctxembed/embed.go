package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"ctxembed/internal/embedding"

	"github.com/spf13/cobra"
)

var embedBatch bool

type embedOutput struct {
	Model     string    `json:"model"`
	Dimension int       `json:"dimension"`
	Embedding []float32 `json:"embedding"`
}

var embedCmd = &cobra.Command{
	Use:   "embed [text...]",
	Short: "Embed text from arguments or stdin",
	Long: `Embed text and print the result as JSON.

Arguments are joined with spaces into one text. Without arguments the text is
read from stdin. With --batch every argument (or every stdin line) is a
separate input, embedded in a single request, and one JSON object is printed
per input.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := setup(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		texts, err := embedInputs(cmd.InOrStdin(), args, embedBatch)
		if err != nil {
			return err
		}

		var vecs []embedding.Vector
		if embedBatch {
			vecs, err = rt.provider.EmbedBatch(ctx, texts)
		} else {
			var v embedding.Vector
			v, err = rt.provider.Embed(ctx, texts[0])
			vecs = []embedding.Vector{v}
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		model := rt.provider.Model()
		for _, v := range vecs {
			if err := enc.Encode(embedOutput{Model: model, Dimension: v.Dimension, Embedding: v.Values}); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	embedCmd.Flags().BoolVarP(&embedBatch, "batch", "b", false, "treat each argument or stdin line as a separate input")
}

func embedInputs(stdin io.Reader, args []string, batch bool) ([]string, error) {
	if len(args) > 0 {
		if batch {
			return args, nil
		}
		return []string{strings.Join(args, " ")}, nil
	}

	if !batch {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return []string{strings.TrimRight(string(b), "\n")}, nil
	}

	var texts []string
	sc := bufio.NewScanner(stdin)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		texts = append(texts, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("no input lines on stdin")
	}
	return texts, nil
}

