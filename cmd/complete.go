package cmd

import (
	"github.com/etnz/aurum/docs"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// Completion returns the shell completion of the aurum command.
func Completion() *complete.Command {
	topics, _ := docs.GetAllTopics()
	basis := predict.Set{"last-transfer", "original"}
	return &complete.Command{
		Flags: map[string]complete.Predictor{
			"config":      predict.Files("*.yaml"),
			"data":        predict.Dirs("*"),
			"ledger":      predict.Something,
			"ledger-id":   predict.Something,
			"store":       predict.Something,
			"owner-match": predict.Set{"exact", "fold", "fold-or-orphan"},
			"basis":       basis,
			"prices":      predict.Files("*.json"),
			"kafka":       predict.Something,
			"kafka-topic": predict.Something,
			"v":           predict.Nothing,
		},
		Sub: map[string]*complete.Command{
			"holdings": {Flags: map[string]complete.Predictor{
				"owner": predict.Something, "refresh": predict.Nothing, "watch": predict.Nothing, "json": predict.Nothing,
			}},
			"track": {Flags: map[string]complete.Predictor{"json": predict.Nothing}, Args: predict.Something},
			"tax":   {Flags: map[string]complete.Predictor{"basis": basis, "json": predict.Nothing}, Args: predict.Something},
			"prices": {Flags: map[string]complete.Predictor{"json": predict.Nothing}},
			"register": {Flags: map[string]complete.Predictor{
				"owner": predict.Something, "weight": predict.Something, "purity": predict.Set{"24K", "22K", "18K"},
				"description": predict.Something, "certification": predict.Something, "cert-date": predict.Something,
				"mine": predict.Something, "parent": predict.Something, "json": predict.Nothing,
			}},
			"transfer": {Flags: map[string]complete.Predictor{"to": predict.Something, "date": predict.Something}, Args: predict.Something},
			"session":  {Args: predict.Set{"show", "reconnect", "clear"}},
			"serve":    {Flags: map[string]complete.Predictor{"addr": predict.Something}},
			"topic":    {Flags: map[string]complete.Predictor{"l": predict.Nothing}, Args: predict.Set(topics)},
		},
	}
}
