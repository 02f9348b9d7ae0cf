package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	config "houseprice-api/configs"
	"houseprice-api/pkg/services"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}
	cfg := config.LoadConfig()

	dataPath := flag.String("data", cfg.DatasetPath, "training dataset (.csv or .xlsx)")
	outPath := flag.String("out", cfg.ModelPath, "model artifact destination")
	testSize := flag.Float64("test-size", cfg.TestSize, "fraction of rows held out for evaluation")
	seed := flag.Int64("seed", cfg.RandomSeed, "random seed for the train/test split")
	flag.Parse()

	training := services.NewTrainingService(
		services.NewDatasetService(*testSize, *seed),
		services.NewRegressionService(),
		nil,
	)

	report, err := training.Train(*dataPath, *outPath)
	if err != nil {
		log.Printf("❌ Training failed: %v", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Printf("❌ Could not encode training report: %v", err)
		os.Exit(1)
	}
	log.Printf("📄 Training report:\n%s", out)
}
