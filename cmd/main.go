package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"unigram-go/internal/config"
	"unigram-go/internal/service"
	"unigram-go/internal/service/encoder"
	"unigram-go/internal/service/textproc"
	"unigram-go/internal/service/trainer"
)

func main() {
	var configPath = flag.String("config", "app.yaml", "Path to configuration file")
	var corpus = flag.String("corpus", "", "Comma-separated corpus text files to train from")
	var modelName = flag.String("model", "unigram", "Model name inside the output directory")
	var encodeText = flag.String("encode", "", "Encode text with a saved model instead of training")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	cfgZap := zap.NewProductionConfig()
	level, err := zapcore.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		log.Fatal("Invalid log level: ", err)
	}
	cfgZap.Level.SetLevel(level)
	logger, err := cfgZap.Build()
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer logger.Sync()

	persistence, err := service.NewModelPersistence(cfg.App.OutputDir, logger)
	if err != nil {
		logger.Fatal("Failed to create persistence", zap.Error(err))
	}

	if *encodeText != "" {
		runEncode(cfg, logger, persistence, *modelName, *encodeText)
		return
	}
	runTrain(cfg, logger, persistence, *corpus, *modelName)
}

func runTrain(cfg *config.Config, logger *zap.Logger, persistence *service.ModelPersistence, corpus, modelName string) {
	if corpus == "" {
		logger.Fatal("No corpus files given, use -corpus file1.txt,file2.txt")
	}

	counterOpts := []textproc.CounterOption{}
	normalizer := textproc.NewNormalizer()
	if cfg.Trainer.Lowercase {
		normalizer = normalizer.WithLowercase()
	}
	counterOpts = append(counterOpts, textproc.WithNormalizer(normalizer))
	if cfg.Trainer.PreTokenizer == "metaspace" {
		counterOpts = append(counterOpts, textproc.WithPreTokenizer(textproc.NewMetaspacePreTokenizer()))
	}
	if cfg.Trainer.PruneSingleton {
		counterOpts = append(counterOpts, textproc.WithSingletonPruning(cfg.Trainer.ExpectedWords, 0.01))
	}

	counter := textproc.NewWordCounter(logger, counterOpts...)
	files := strings.Split(corpus, ",")
	if err := counter.AddFiles(files, cfg.App.NumThreads); err != nil {
		logger.Fatal("Failed to count corpus", zap.Error(err))
	}
	logger.Info("corpus counted",
		zap.Int("files", len(files)),
		zap.Int("distinct_words", counter.DistinctWords()),
	)

	opts := trainer.Options{
		VocabSize:       cfg.Trainer.VocabSize,
		SpecialTokens:   cfg.Trainer.SpecialTokens,
		InitialAlphabet: cfg.Trainer.InitialAlphabet,
		UnkToken:        cfg.Trainer.UnkToken,
		SeedSize:        cfg.Trainer.SeedSize,
		ShrinkFactor:    cfg.Trainer.ShrinkFactor,
		EMIterations:    cfg.Trainer.EMIterations,
		MaxPieceLength:  cfg.Trainer.MaxPieceLength,
		Workers:         cfg.App.NumThreads,
	}
	if cfg.Trainer.ShowProgress {
		opts.Progress = func(cp trainer.Checkpoint) {
			fmt.Printf("round %d: vocab=%d log-likelihood=%.4f\n", cp.Round, cp.VocabSize, cp.LogLikelihood)
		}
	}

	tr, err := trainer.New(opts, logger)
	if err != nil {
		logger.Fatal("Invalid trainer options", zap.Error(err))
	}
	model, err := tr.Train(counter.Table())
	if err != nil {
		logger.Fatal("Training failed", zap.Error(err))
	}
	if err := persistence.SaveModel(model, modelName, tr.RunID()); err != nil {
		logger.Fatal("Failed to save model", zap.Error(err))
	}
}

func runEncode(cfg *config.Config, logger *zap.Logger, persistence *service.ModelPersistence, modelName, text string) {
	model, err := persistence.LoadModel(modelName)
	if err != nil {
		logger.Fatal("Failed to load model", zap.Error(err))
	}
	enc, err := encoder.New(model, logger)
	if err != nil {
		logger.Fatal("Failed to build encoder", zap.Error(err))
	}

	normalizer := textproc.NewNormalizer()
	if cfg.Trainer.Lowercase {
		normalizer = normalizer.WithLowercase()
	}
	var pre textproc.PreTokenizer = textproc.WhitespacePreTokenizer{}
	if cfg.Trainer.PreTokenizer == "metaspace" {
		pre = textproc.NewMetaspacePreTokenizer()
	}

	for _, word := range pre.Split(normalizer.Normalize(text)) {
		tokens, err := enc.Encode(word)
		if err != nil {
			logger.Fatal("Encoding failed", zap.String("word", word), zap.Error(err))
		}
		for _, tok := range tokens {
			fmt.Printf("%d\t%s\n", tok.ID, tok.Piece)
		}
	}
}
