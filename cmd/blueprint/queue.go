package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"z-novel-blueprint/internal/application/blueprint/generator"
	"z-novel-blueprint/internal/domain/entity"
	"z-novel-blueprint/internal/infrastructure/messaging"
	"z-novel-blueprint/internal/infrastructure/persistence/redis"
)

var queueFlags struct {
	start, end, total int
	resume, fill      bool
	unitPolicy        string
	guidance          string
	jobID             string
}

var enqueueCmd = &cobra.Command{
	Use:     "enqueue",
	Short:   "Queue a generation job for blueprint-worker",
	PreRunE: requireNovel,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var job *entity.BlueprintJob
		if queueFlags.resume {
			job = entity.NewResumeJob(novelID, queueFlags.total)
		} else {
			job = entity.NewRangeJob(novelID, queueFlags.start, queueFlags.end, queueFlags.total)
		}
		job.UnitPolicy = queueFlags.unitPolicy
		job.UserGuidance = queueFlags.guidance
		if queueFlags.fill {
			job.Mode = string(generator.ModeFill)
		}

		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		client, err := a.redisClient()
		if err != nil {
			return err
		}
		producer := messaging.NewProducer(client.Redis(), int64(a.cfg.Messaging.RedisStream.MaxLen))
		streamID, err := producer.PublishBlueprintJob(ctx, job)
		if err != nil {
			return err
		}
		if err := redis.NewJobRepository(client, 0).Save(ctx, job); err != nil {
			return err
		}

		if jsonOut {
			return writeJSON(cmd.OutOrStdout(), job)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "任务已提交：%s（消息 %s）\n", job.ID, streamID)
		return nil
	},
}

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Show the status of a queued job",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		client, err := a.redisClient()
		if err != nil {
			return err
		}
		job, err := redis.NewJobRepository(client, 0).Get(ctx, queueFlags.jobID)
		if err != nil {
			return err
		}
		if job == nil {
			return fmt.Errorf("job %s not found", queueFlags.jobID)
		}

		out := cmd.OutOrStdout()
		if jsonOut {
			return writeJSON(out, job)
		}
		fmt.Fprintf(out, "%s %s %s 尝试 %d 次\n", job.ID, job.Type, job.Status, job.Attempts)
		if len(job.Written) > 0 {
			fmt.Fprintf(out, "已写入章节 %d 个\n", len(job.Written))
		}
		if job.ErrorMessage != "" {
			fmt.Fprintf(out, "错误：%s\n", job.ErrorMessage)
		}
		return nil
	},
}

func init() {
	f := enqueueCmd.Flags()
	f.IntVar(&queueFlags.start, "start", 0, "First chapter to generate")
	f.IntVar(&queueFlags.end, "end", 0, "Last chapter to generate")
	f.IntVar(&queueFlags.total, "total", 0, "Total number of chapters of the novel")
	f.BoolVar(&queueFlags.resume, "resume", false, "Continue from the last chapter up to --total")
	f.BoolVar(&queueFlags.fill, "fill", false, "Keep existing chapters in the range")
	f.StringVar(&queueFlags.unitPolicy, "unit-policy", "", "Unit policy: reuse, regenerate or none")
	f.StringVar(&queueFlags.guidance, "guidance", "", "User guidance passed to the model")

	jobCmd.Flags().StringVar(&queueFlags.jobID, "id", "", "Job id")
	_ = jobCmd.MarkFlagRequired("id")
}
