package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orneryd/stm/pkg/clock"
	"github.com/orneryd/stm/pkg/memory"
)

func (a *app) saveCmd() *cobra.Command {
	var tags, entities []string
	var source, context string

	cmd := &cobra.Command{
		Use:   "save <content>",
		Short: "Save a new memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := args[0]
			if err := validateSave(content, tags, entities, source, context); err != nil {
				return err
			}

			now := a.clock.Now()
			m := memory.Memory{
				ID:        clock.NewID(),
				Content:   content,
				Metadata:  memory.Metadata{Tags: tags, Source: source, Context: context},
				CreatedAt: now,
				LastUsed:  now,
				UseCount:  1,
				Strength:  1.0,
				Status:    memory.StatusActive,
				Entities:  entities,
			}
			if err := a.store.SaveMemory(m); err != nil {
				return err
			}
			a.rebuildGraph()

			result := a.newScheduler().PostSaveCheck(m.ID, false)
			fmt.Printf("saved %s\n", m.ID)
			if result.Action != "none" {
				fmt.Printf("%s: score=%.4f\n", result.Action, result.Score)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "comma-separated tags")
	cmd.Flags().StringSliceVar(&entities, "entities", nil, "comma-separated entities")
	cmd.Flags().StringVar(&source, "source", "", "originating source")
	cmd.Flags().StringVar(&context, "context", "", "free-form context")
	return cmd
}

func validateSave(content string, tags, entities []string, source, context string) error {
	if err := memory.ValidateContent(content); err != nil {
		return err
	}
	if err := memory.ValidateTags(tags); err != nil {
		return err
	}
	if err := memory.ValidateEntities(entities); err != nil {
		return err
	}
	if err := memory.ValidateSource(source); err != nil {
		return err
	}
	if err := memory.ValidateContext(context); err != nil {
		return err
	}
	return nil
}
