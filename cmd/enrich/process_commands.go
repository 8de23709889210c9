package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/johnquangdev/podcast-assistant/internal/usecase/pipeline"
)

func newProcessEpisodeCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "process-episode <episode-id>",
		Short: "Transcribe and enrich one episode",
		Long: `Run the full pipeline for one episode: transcription fallback chain, then
summary, speakers, topics, embeddings and suggested queries in parallel.
Stages that already completed are skipped unless --force is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			episodeID, err := parseID("episode", args[0])
			if err != nil {
				return err
			}

			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			defer ctx.close()

			result, err := a.Pipeline.ProcessEpisode(cmd.Context(), episodeID, force)
			if result != nil {
				fmt.Fprint(cmd.OutOrStdout(), renderRunResult(result))
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Re-run every stage even if already complete")
	return cmd
}

func newProcessPodcastCommand(ctx *commandContext) *cobra.Command {
	var (
		force       bool
		limit       int
		maxEpisodes int
		episodeArgs []string
	)

	cmd := &cobra.Command{
		Use:   "process-podcast <podcast-id>",
		Short: "Run the pipeline for a podcast's episodes",
		Long: `Run the pipeline for every episode of a podcast that is not ready yet.
--episodes restricts the run to the given ids; --limit caps the number of runs;
--max caps how many ready episodes the podcast may reach (ignored with --force).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			podcastID, err := parseID("podcast", args[0])
			if err != nil {
				return err
			}
			episodeIDs, err := parseIDs(episodeArgs)
			if err != nil {
				return err
			}

			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			defer ctx.close()

			n, err := a.Pipeline.ProcessPodcast(cmd.Context(), podcastID, pipeline.ProcessPodcastOptions{
				Force:        force,
				EpisodeIDs:   episodeIDs,
				EpisodeLimit: limit,
				MaxEpisodes:  maxEpisodes,
			})
			fmt.Fprintf(cmd.OutOrStdout(), "Processed %d episode(s)\n", n)
			return err
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Re-run every stage even if already complete")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of episodes to run (0 = no limit)")
	cmd.Flags().IntVar(&maxEpisodes, "max", 0, "Maximum number of ready episodes for the podcast (0 = no cap)")
	cmd.Flags().StringSliceVar(&episodeArgs, "episodes", nil, "Only run these episode ids")
	return cmd
}

func newClearErrorsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-errors <podcast-id>",
		Short: "Reset failed episodes of a podcast to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			podcastID, err := parseID("podcast", args[0])
			if err != nil {
				return err
			}

			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			defer ctx.close()

			n, err := a.Pipeline.ClearPodcastErrors(cmd.Context(), podcastID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d episode(s)\n", n)
			return nil
		},
	}
}

func parseID(kind, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s id %q: %w", kind, raw, err)
	}
	return id, nil
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		id, err := parseID("episode", r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

var stageOrder = []string{
	pipeline.StageTranscribe,
	pipeline.StageEnrich,
	pipeline.StageSummarize,
	pipeline.StageSpeakers,
	pipeline.StageTopics,
	pipeline.StageEmbed,
	pipeline.StageSuggest,
}

func renderRunResult(r *pipeline.RunResult) string {
	var rows [][]string
	seen := make(map[string]bool, len(r.Stages))
	for _, stage := range stageOrder {
		if outcome, ok := r.Stages[stage]; ok {
			rows = append(rows, []string{stage, outcome, r.Errors[stage]})
			seen[stage] = true
		}
	}
	var extra []string
	for stage := range r.Stages {
		if !seen[stage] {
			extra = append(extra, stage)
		}
	}
	sort.Strings(extra)
	for _, stage := range extra {
		rows = append(rows, []string{stage, r.Stages[stage], r.Errors[stage]})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Episode %s: %s", r.EpisodeID, r.State)
	if r.TranscriptSource != "" {
		fmt.Fprintf(&b, " (transcript from %s)", r.TranscriptSource)
	}
	b.WriteString("\n")
	b.WriteString(renderTable([]string{"Stage", "Outcome", "Error"}, rows))
	b.WriteString("\n")
	return b.String()
}
