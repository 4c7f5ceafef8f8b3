package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"procodus.dev/thermobot/internal/producer"
)

var generatorCmd = &cobra.Command{
	Use:   "generator",
	Short: "Run the synthetic reading generator",
	Long: `Run the generator that:
- Creates a fleet of synthetic thermometers
- Publishes readings with a daily temperature cycle to RabbitMQ`,
	RunE: runGenerator,
}

func init() {
	rootCmd.AddCommand(generatorCmd)

	generatorCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	generatorCmd.Flags().String("queue-name", "sensor-data", "RabbitMQ queue name for sensor readings")
	generatorCmd.Flags().Int("thermometer-count", 3, "number of synthetic thermometers")
	generatorCmd.Flags().Duration("interval", time.Minute, "interval between reading batches")

	_ = viper.BindPFlag("generator.rabbitmq.url", generatorCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("generator.rabbitmq.queue_name", generatorCmd.Flags().Lookup("queue-name"))
	_ = viper.BindPFlag("generator.thermometer_count", generatorCmd.Flags().Lookup("thermometer-count"))
	_ = viper.BindPFlag("generator.interval", generatorCmd.Flags().Lookup("interval"))
}

func runGenerator(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting generator service")

	config := &producer.ServerConfig{
		Logger:      logger,
		RabbitMQURL: viper.GetString("generator.rabbitmq.url"),
		QueueName:   viper.GetString("generator.rabbitmq.queue_name"),
		Count:       viper.GetInt("generator.thermometer_count"),
		Interval:    viper.GetDuration("generator.interval"),
	}

	server, err := producer.NewServer(config)
	if err != nil {
		logger.Error("failed to create generator server", "error", err)
		return err
	}

	logger.Info("generator configuration",
		"rabbitmq_url", config.RabbitMQURL,
		"queue_name", config.QueueName,
		"thermometer_count", config.Count,
		"interval", config.Interval,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("generator server error", "error", err)
		return err
	}

	logger.Info("generator server stopped")
	return nil
}
