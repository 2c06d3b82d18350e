// Command predict_once scores a single request offline against a model artifact and
// prints the same JSON that POST /predict returns.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"martsales/logging"
	"martsales/ml"
	"martsales/sales"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("predict_once", flag.ContinueOnError)
	modelPath := fs.String("model", "models/mart_sales_model.json", "model artifact path")
	modelType := fs.String("type", ml.ModelTypeXGBoost, "model type (xgboost or tree)")
	input := fs.String("input", "-", "request JSON file, - for stdin")
	referenceYear := fs.Int("reference_year", ml.DefaultReferenceYear, "year outlet age is measured against")
	logLevel := fs.String("log_level", "warn", "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Level: *logLevel})
	if err != nil {
		return err
	}
	defer logger.Sync()

	model, err := ml.LoadModel(*modelType, *modelPath)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	logger.Debug("model loaded", zap.String("model", model.Name()), zap.Int("features", model.NumFeatures()))

	r := stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	req, err := sales.DecodeAndValidate(r)
	if err != nil {
		return err
	}

	svc, err := ml.NewService(model, ml.WithLogger(logger), ml.WithReferenceYear(*referenceYear))
	if err != nil {
		return err
	}
	prediction, err := svc.Predict(context.Background(), req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sales.PredictionResponse{InputData: req, Prediction: prediction})
}
