package cli

import (
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/spf13/cobra"

	"github.com/baldanca/awsbulk/target"
	"github.com/baldanca/awsbulk/transformer"
)

func (a *app) sqsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sqs",
		Short: "SQS bulk operations",
	}
	cmd.AddCommand(a.sendMessageBatchCommand())
	return cmd
}

func (a *app) sendMessageBatchCommand() *cobra.Command {
	var (
		f        batchFlags
		queueURL string
	)
	cmd := &cobra.Command{
		Use:   "send-message-batch",
		Short: "Send messages with SendMessageBatch",
		Long: `Each input is either a message entry ({"MessageBody": ..., "Id", "DelaySeconds",
"MessageGroupId", "MessageDeduplicationId", "MessageAttributes"}) or any other
JSON value, which is sent as the message body. Missing entry ids are generated.`,
		Example: `  awsbulk sqs send-message-batch --queue-url https://sqs.eu-west-1.amazonaws.com/123456789012/jobs --input jobs.jsonl`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if queueURL == "" {
				return usageErrorf("--queue-url is required")
			}
			return runBatch(cmd.Context(), a, cmd, &f, batchJob[sqstypes.SendMessageBatchRequestEntry]{
				command:   "sqs send-message-batch",
				limit:     target.SQSMaxBatchSize,
				transform: transformer.SQS{},
				target: func(c Clients) target.Operation[sqstypes.SendMessageBatchRequestEntry] {
					return target.NewSQSSender(c.SQS(), queueURL)
				},
			})
		},
	}
	cmd.Flags().StringVarP(&queueURL, "queue-url", "q", "", "queue URL")
	addBatchFlags(cmd, &f)
	return cmd
}
