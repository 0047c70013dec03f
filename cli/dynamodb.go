package cli

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spf13/cobra"

	"github.com/baldanca/awsbulk/source"
	"github.com/baldanca/awsbulk/target"
	"github.com/baldanca/awsbulk/transformer"
)

func (a *app) dynamodbCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dynamodb",
		Short: "DynamoDB bulk operations",
	}
	cmd.AddCommand(a.batchWriteItemCommand())
	return cmd
}

func (a *app) batchWriteItemCommand() *cobra.Command {
	var (
		f         batchFlags
		table     string
		plainJSON bool
	)
	cmd := &cobra.Command{
		Use:   "batch-write-item",
		Short: "Put and delete items with BatchWriteItem",
		Long: `Each input is a {"PutRequest": {"Item": ...}}, a {"DeleteRequest": {"Key": ...}}
or a bare item to put. Attribute values are DynamoDB JSON ({"S": "x"}) unless
--plain-json is set. An AWS CLI request-items file ({"Table": [...]}) is also
accepted, in which case --table may be omitted.`,
		Example: `  awsbulk dynamodb batch-write-item --table users --input users.jsonl
  awsbulk dynamodb batch-write-item --input request-items.json --failed-output failed.jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd.Context(), a, cmd, &f, batchJob[types.WriteRequest]{
				command:   "dynamodb batch-write-item",
				limit:     target.DynamoDBMaxBatchSize,
				transform: transformer.DynamoDB{PlainJSON: plainJSON},
				expand: func(envs []source.Envelope) ([]source.Envelope, error) {
					out, t, err := transformer.ExpandRequestFile(envs, table)
					if err != nil {
						return nil, &usageError{err: err}
					}
					if t == "" {
						return nil, usageErrorf("--table is required unless the input is a request-items file")
					}
					table = t
					return out, nil
				},
				target: func(c Clients) target.Operation[types.WriteRequest] {
					return target.NewDynamoDBWriter(c.DynamoDB(), table)
				},
			})
		},
	}
	cmd.Flags().StringVarP(&table, "table", "t", "", "table name")
	cmd.Flags().BoolVar(&plainJSON, "plain-json", false, "attribute values are plain JSON instead of DynamoDB JSON")
	addBatchFlags(cmd, &f)
	return cmd
}
