package main

type StoreFlags struct {
	Database string `help:"database path" short:"d" required:""`
	Config   string `help:"config file path" short:"c" type:"existingfile"`
}

type JobFlags struct {
	Name          string `help:"job name" required:""`
	Source        string `help:"source directory path" short:"s" required:""`
	Provider      string `help:"storage provider id" short:"p" required:""`
	Remote        string `help:"remote path the archives are uploaded to" short:"r" required:""`
	Schedule      string `help:"cron schedule, 5 fields or a descriptor such as @daily" required:""`
	RetentionDays int    `help:"days archives are kept, 0 uses the settings default"`
	Compression   bool   `help:"deflate archives" negatable:"" default:"true"`
	Encryption    bool   `help:"encrypt archives with the configured key"`
	Paused        bool   `help:"do not schedule the job"`
}

type Command struct {
	Version struct{} `cmd:"" help:"Print version information."`
	Keygen  struct{} `cmd:"" help:"Print a new random encryption key."`
	Daemon  struct {
		Store StoreFlags `embed:""`
	} `cmd:"" help:"Run the backup service."`
	Run struct {
		Store StoreFlags `embed:""`
		Job   string     `arg:"" help:"job id"`
	} `cmd:"" help:"Run a job now and wait for it to finish."`
	Restore struct {
		Store     StoreFlags `embed:""`
		Run       string     `arg:"" help:"history run id"`
		Dest      string     `help:"destination directory path where files will be restored" short:"D" required:""`
		Overwrite bool       `help:"replace existing files whose content differs"`
		DryRun    bool       `help:"don't write any files, just print the output"`
	} `cmd:"" help:"Restore the archive uploaded by a run."`
	Clean struct {
		Store StoreFlags `embed:""`
		Job   string     `help:"only clean up the remote path of this job" short:"j"`
	} `cmd:"" help:"Delete remote archives older than the retention window."`
	Job struct {
		Add struct {
			Store StoreFlags `embed:""`
			Def   JobFlags   `embed:""`
		} `cmd:"" help:"Create a backup job."`
		List struct {
			Store StoreFlags `embed:""`
		} `cmd:"" help:"List backup jobs."`
		Show struct {
			Store StoreFlags `embed:""`
			ID    string     `arg:"" help:"job id"`
		} `cmd:"" help:"Show a backup job."`
		Update struct {
			Store StoreFlags `embed:""`
			ID    string     `arg:"" help:"job id"`
			Def   JobFlags   `embed:""`
		} `cmd:"" help:"Replace the definition of a backup job."`
		Remove struct {
			Store StoreFlags `embed:""`
			ID    string     `arg:"" help:"job id"`
		} `cmd:"" help:"Delete a backup job. Its history is kept."`
	} `cmd:"" help:"Manage backup jobs."`
	Provider struct {
		Add struct {
			Store   StoreFlags `embed:""`
			Name    string     `help:"provider name" required:""`
			Variant string     `help:"backend" enum:"s3,b2,storj" required:""`
			Payload string     `help:"JSON credentials file" type:"existingfile" required:""`
		} `cmd:"" help:"Create a storage provider."`
		List struct {
			Store StoreFlags `embed:""`
		} `cmd:"" help:"List storage providers."`
		Rotate struct {
			Store   StoreFlags `embed:""`
			ID      string     `arg:"" help:"provider id"`
			Payload string     `help:"JSON credentials file" type:"existingfile" required:""`
		} `cmd:"" help:"Replace the credentials of a storage provider."`
		Remove struct {
			Store StoreFlags `embed:""`
			ID    string     `arg:"" help:"provider id"`
		} `cmd:"" help:"Delete a storage provider no job uses."`
		Test struct {
			Store StoreFlags `embed:""`
			ID    string     `arg:"" help:"provider id"`
		} `cmd:"" help:"Test the connection of a storage provider."`
		TestConfig struct {
			Store   StoreFlags `embed:""`
			Variant string     `help:"backend" enum:"s3,b2,storj" required:""`
			Payload string     `help:"JSON credentials file" type:"existingfile" required:""`
		} `cmd:"" help:"Test credentials without saving them."`
		TestAll struct {
			Store StoreFlags `embed:""`
		} `cmd:"" help:"Test every storage provider."`
	} `cmd:"" help:"Manage storage providers."`
	History struct {
		Store StoreFlags `embed:""`
		Job   string     `help:"only show runs of this job" short:"j"`
		Limit int        `help:"maximum number of runs to show" default:"20"`
	} `cmd:"" help:"List backup runs, newest first."`
	Settings struct {
		Show struct {
			Store StoreFlags `embed:""`
		} `cmd:"" help:"Show the current settings."`
		Set struct {
			Store             StoreFlags `embed:""`
			MaxConcurrentJobs int        `help:"maximum number of jobs running at once" default:"-1"`
			RetentionDays     int        `help:"default retention in days" default:"-1"`
			CompressionLevel  int        `help:"deflate level, 1 to 9" default:"-1"`
		} `cmd:"" help:"Change settings. Unset values are kept."`
	} `cmd:"" help:"Manage global settings."`
}
