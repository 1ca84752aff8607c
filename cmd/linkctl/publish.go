package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"semantic-linker/internal/usecase/render"
)

func NewApplyCmd(engine EngineFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <edge-id>",
		Short: "Mark a link edge as rendered into published content",
		Long: `Record that a publisher rendered the edge. With --from-post and --to-post the
edge's post ids are first replaced by the ids of the published posts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fromPost, _ := cmd.Flags().GetString("from-post")
			toPost, _ := cmd.Flags().GetString("to-post")
			edgeID := args[0]

			eng, err := engine(cmd.Context())
			if err != nil {
				return err
			}
			if fromPost != "" {
				if err := eng.Links.PromoteToPosts(cmd.Context(), edgeID, fromPost, toPost); err != nil {
					return fmt.Errorf("promote %s: %w", edgeID, err)
				}
			}
			if err := eng.Links.MarkApplied(cmd.Context(), edgeID, time.Now().UTC()); err != nil {
				return fmt.Errorf("apply %s: %w", edgeID, err)
			}

			edge, err := eng.Links.Get(cmd.Context(), edgeID)
			if err != nil {
				return fmt.Errorf("apply %s: %w", edgeID, err)
			}
			if wantJSON(cmd) {
				return writeJSON(cmd, toEdgeOutput(edge))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s applied at %s\n", edge.ID, edge.AppliedAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().String("from-post", "", "Published post id of the source article")
	cmd.Flags().String("to-post", "", "Published post id of the target article")
	cmd.MarkFlagsRequiredTogether("from-post", "to-post")
	return cmd
}

func NewRenderCmd(engine EngineFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <article>",
		Short: "Insert an article's outbound links into its HTML",
		Long: `Read the article HTML from --file (or stdin with "-"), insert its outbound
links and print the result. Rendered edges are marked applied unless --dry-run is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			articleID := args[0]

			document, err := readDocument(cmd, path)
			if err != nil {
				return err
			}

			eng, err := engine(cmd.Context())
			if err != nil {
				return err
			}

			var res render.Result
			if dryRun {
				edges, err := eng.Links.ListOutbound(cmd.Context(), articleID)
				if err != nil {
					return fmt.Errorf("render %s: %w", articleID, err)
				}
				res, err = render.InsertLinks(document, edges, nil)
				if err != nil {
					return fmt.Errorf("render %s: %w", articleID, err)
				}
			} else {
				res, err = eng.Publisher.Publish(cmd.Context(), articleID, document)
				if err != nil {
					return err
				}
			}

			if wantJSON(cmd) {
				return writeJSON(cmd, map[string]any{
					"html":    res.HTML,
					"applied": res.Applied,
					"missing": res.Missing,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.HTML)
			fmt.Fprintf(cmd.ErrOrStderr(), "applied=%d missing=%d\n", len(res.Applied), len(res.Missing))
			return nil
		},
	}

	cmd.Flags().String("file", "-", `HTML file to render, "-" for stdin`)
	cmd.Flags().Bool("dry-run", false, "Render without marking edges applied")
	return cmd
}

func readDocument(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return string(data), nil
}

func NewPurgeCmd(engine EngineFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <workspace> <article>",
		Short: "Remove a deleted or unpublished article from the engine now",
		Long: `Delete the article's embedding and candidate edges and retire its applied
edges without waiting for the next reconciliation.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := engine(cmd.Context())
			if err != nil {
				return err
			}
			res, err := eng.Job.PurgeArticle(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if wantJSON(cmd) {
				return writeJSON(cmd, map[string]int{"deleted": res.Deleted, "retired": res.Retired})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted=%d retired=%d\n", res.Deleted, res.Retired)
			return nil
		},
	}
}
