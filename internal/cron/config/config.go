package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Periodic mail sync for all accounts, every 5 minutes
	CronSchedulePeriodicSync string `env:"CRON_SCHEDULE_PERIODIC_SYNC" envDefault:"0 */5 * * * *"`
	// Pending command drain, every 10 minutes
	CronSchedulePendingCommands string `env:"CRON_SCHEDULE_PENDING_COMMANDS" envDefault:"0 */10 * * * *"`
	// Outbox drain, every 5 minutes
	CronScheduleSendPending string `env:"CRON_SCHEDULE_SEND_PENDING" envDefault:"0 */5 * * * *"`
}
