package config

const (
	defaultIncomingDir  = "~/.local/share/ambo/incoming"
	defaultArtifactsDir = "~/.local/share/ambo/homilies"
	defaultLogDir       = "~/.local/share/ambo/logs"

	defaultFilePrefix          = "Mass-"
	defaultAudioExtension      = ".mp3"
	defaultTranscriptExtension = ".vtt"
	defaultTranscriptTimeout   = 3600
	defaultRescanInterval      = 60
	defaultVigilCutoffHour     = 15

	defaultMinElapsedFloor   = 300
	defaultMaxHomilyDuration = 1200
	defaultBoundaryFallback  = "none"
	defaultFallbackOffset    = 900
	defaultFallbackDuration  = 600
	defaultMinDurationWarn   = 60
	defaultMaxDurationWarn   = 1200

	defaultComparisonMetric   = "cosine"
	defaultDeviationThreshold = 0.55

	defaultNotifyRequestTimeout   = 10
	defaultNotifyDispatchInterval = 60

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Phrases conventionally spoken at the end of the Gospel reading, right
// before the homily begins.
var defaultIntroductionMarkers = []string{
	"the gospel of the lord",
	"praise to you lord jesus christ",
}

// Phrases conventionally spoken when the service transitions into the creed
// or the prayers of the faithful.
var defaultClosingMarkers = []string{
	"let us profess our faith",
	"i believe in one god",
	"we pray to the lord",
	"lord hear our prayer",
	"let us offer our prayers",
	"prayers of petition",
	"prayer of the faithful",
	"prayers of the faithful",
}

// Transcription filler tokens stripped before comparison.
var defaultStopwords = []string{
	"um", "uh", "uhm", "er", "ah", "mm", "hmm",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			IncomingDir:  defaultIncomingDir,
			ArtifactsDir: defaultArtifactsDir,
			LogDir:       defaultLogDir,
		},
		Ingest: Ingest{
			FilePrefix:          defaultFilePrefix,
			AudioExtension:      defaultAudioExtension,
			TranscriptExtension: defaultTranscriptExtension,
			TranscriptTimeout:   defaultTranscriptTimeout,
			RescanInterval:      defaultRescanInterval,
			VigilCutoffHour:     defaultVigilCutoffHour,
		},
		Boundary: Boundary{
			IntroductionMarkers: append([]string(nil), defaultIntroductionMarkers...),
			ClosingMarkers:      append([]string(nil), defaultClosingMarkers...),
			MinElapsedFloor:     defaultMinElapsedFloor,
			MaxHomilyDuration:   defaultMaxHomilyDuration,
			Fallback:            defaultBoundaryFallback,
			FallbackOffset:      defaultFallbackOffset,
			FallbackDuration:    defaultFallbackDuration,
			MinDurationWarn:     defaultMinDurationWarn,
			MaxDurationWarn:     defaultMaxDurationWarn,
		},
		Comparison: Comparison{
			Metric:             defaultComparisonMetric,
			DeviationThreshold: defaultDeviationThreshold,
			Stopwords:          append([]string(nil), defaultStopwords...),
		},
		Notifications: Notifications{
			RequestTimeout:   defaultNotifyRequestTimeout,
			DispatchInterval: defaultNotifyDispatchInterval,
			Deviations:       true,
			Reviews:          true,
			Errors:           true,
		},
		Workflow: Workflow{
			QueuePollInterval:  5,
			ErrorRetryInterval: 10,
			HeartbeatInterval:  15,
			HeartbeatTimeout:   120,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
