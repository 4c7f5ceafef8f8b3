package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"procodus.dev/thermobot/internal/ingest"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the thermobot server",
	Long: `Run the server that:
- Accepts sensor readings over HTTP and (optionally) RabbitMQ
- Persists per-sensor reading history to CSV record files
- Serves the Telegram webhook and keeps one rendered view per user`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().Int("http-port", 8080, "HTTP listen port")
	serverCmd.Flags().String("records-dir", "./termometr_records", "directory for per-sensor record files")
	serverCmd.Flags().String("users-file", "./users.csv", "path of the user view table")
	serverCmd.Flags().String("bot-token", "", "Telegram bot token")
	serverCmd.Flags().String("api-base-url", "", "Telegram Bot API base URL override")
	serverCmd.Flags().String("webhook-url", "", "public URL Telegram delivers updates to")
	serverCmd.Flags().StringSlice("allowed-users", nil, "user ids allowed to use the bot (empty = everyone)")
	serverCmd.Flags().String("rabbitmq-url", "", "RabbitMQ URL (empty disables the AMQP feed)")
	serverCmd.Flags().String("queue-name", "sensor-data", "RabbitMQ queue name for sensor readings")

	_ = viper.BindPFlag("server.http.port", serverCmd.Flags().Lookup("http-port"))
	_ = viper.BindPFlag("server.records_dir", serverCmd.Flags().Lookup("records-dir"))
	_ = viper.BindPFlag("server.users_file", serverCmd.Flags().Lookup("users-file"))
	_ = viper.BindPFlag("server.telegram.token", serverCmd.Flags().Lookup("bot-token"))
	_ = viper.BindPFlag("server.telegram.api_base_url", serverCmd.Flags().Lookup("api-base-url"))
	_ = viper.BindPFlag("server.telegram.webhook_url", serverCmd.Flags().Lookup("webhook-url"))
	_ = viper.BindPFlag("server.telegram.allowed_users", serverCmd.Flags().Lookup("allowed-users"))
	_ = viper.BindPFlag("server.rabbitmq.url", serverCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("server.rabbitmq.queue_name", serverCmd.Flags().Lookup("queue-name"))
}

func runServer(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting thermobot service")

	config := &ingest.ServerConfig{
		Logger:       logger,
		HTTPPort:     viper.GetInt("server.http.port"),
		RecordsDir:   viper.GetString("server.records_dir"),
		UsersFile:    viper.GetString("server.users_file"),
		BotToken:     viper.GetString("server.telegram.token"),
		APIBaseURL:   viper.GetString("server.telegram.api_base_url"),
		WebhookURL:   viper.GetString("server.telegram.webhook_url"),
		AllowedUsers: viper.GetStringSlice("server.telegram.allowed_users"),
		RabbitMQURL:  viper.GetString("server.rabbitmq.url"),
		QueueName:    viper.GetString("server.rabbitmq.queue_name"),
	}

	server, err := ingest.NewServer(config)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		return err
	}

	logger.Info("server configuration",
		"http_port", config.HTTPPort,
		"records_dir", config.RecordsDir,
		"users_file", config.UsersFile,
		"webhook_url", config.WebhookURL,
		"rabbitmq_url", config.RabbitMQURL,
		"queue_name", config.QueueName,
		"allowed_users", len(config.AllowedUsers),
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("server error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}
