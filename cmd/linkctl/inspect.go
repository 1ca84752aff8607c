package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"semantic-linker/internal/domain/entity"
)

func NewNeighborsCmd(engine EngineFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "neighbors <workspace> <article>",
		Short: "List the most similar articles of an article",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, _ := cmd.Flags().GetInt("number")

			eng, err := engine(cmd.Context())
			if err != nil {
				return err
			}
			neighbors, err := eng.Similarity.Neighbors(cmd.Context(), args[0], args[1], k)
			if err != nil {
				return fmt.Errorf("neighbors: %w", err)
			}

			if wantJSON(cmd) {
				out := make([]map[string]any, 0, len(neighbors))
				for _, n := range neighbors {
					out = append(out, map[string]any{"article_id": n.ArticleID, "score": n.Score})
				}
				return writeJSON(cmd, out)
			}
			for _, n := range neighbors {
				fmt.Fprintf(cmd.OutOrStdout(), "%.4f  %s\n", n.Score, n.ArticleID)
			}
			return nil
		},
	}

	cmd.Flags().IntP("number", "k", 10, "Maximum neighbors")
	return cmd
}

// edgeOutput is the JSON form of a link edge.
type edgeOutput struct {
	ID        string     `json:"id"`
	Workspace string     `json:"workspace_id"`
	From      string     `json:"from_article_id"`
	To        string     `json:"to_article_id"`
	FromPost  string     `json:"from_post_id"`
	ToPost    string     `json:"to_post_id"`
	Anchor    string     `json:"anchor_text"`
	Score     float64    `json:"similarity_score"`
	Type      string     `json:"link_type"`
	Applied   bool       `json:"is_applied"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
	RetiredAt *time.Time `json:"retired_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func toEdgeOutput(e *entity.LinkEdge) edgeOutput {
	return edgeOutput{
		ID:        e.ID,
		Workspace: e.WorkspaceID,
		From:      e.FromArticleID,
		To:        e.ToArticleID,
		FromPost:  e.FromPostID,
		ToPost:    e.ToPostID,
		Anchor:    e.AnchorText,
		Score:     e.SimilarityScore,
		Type:      string(e.LinkType),
		Applied:   e.IsApplied,
		AppliedAt: e.AppliedAt,
		RetiredAt: e.RetiredAt,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func edgeStatus(e *entity.LinkEdge) string {
	switch {
	case e.IsRetired():
		return "retired"
	case e.IsApplied:
		return "applied"
	default:
		return "candidate"
	}
}

func NewLinksCmd(engine EngineFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links <workspace>",
		Short: "List the link map of a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("filter")
			filter, err := entity.ParseEdgeFilter(raw)
			if err != nil {
				return err
			}

			eng, err := engine(cmd.Context())
			if err != nil {
				return err
			}
			edges, err := eng.Links.ListForWorkspace(cmd.Context(), args[0], filter)
			if err != nil {
				return fmt.Errorf("list links: %w", err)
			}

			if wantJSON(cmd) {
				out := make([]edgeOutput, 0, len(edges))
				for _, e := range edges {
					out = append(out, toEdgeOutput(e))
				}
				return writeJSON(cmd, out)
			}
			for _, e := range edges {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s -> %s\t%q\t%.4f\t%s\t%s\n",
					e.ID, e.FromArticleID, e.ToArticleID, e.AnchorText, e.SimilarityScore, e.LinkType, edgeStatus(e))
			}
			return nil
		},
	}

	cmd.Flags().StringP("filter", "f", "all", "Edges to list: applied, candidate, retired or all")
	return cmd
}
