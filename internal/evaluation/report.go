package evaluation

import (
	"fmt"
	"strings"
	"time"
)

// Report renders a markdown summary aggregating the three evaluation
// bundles. Nil bundles and bundles carrying an Err are skipped.
func (e *Evaluator) Report(cat *CategorizationResult, pred *PredictionResult, rec *RecommendationResult) string {
	var b strings.Builder
	b.WriteString("# Model Evaluation Report\n")
	fmt.Fprintf(&b, "Generated on: %s\n\n", time.Now().UTC().Format("2006-01-02 15:04:05"))

	if cat != nil && cat.Err == "" {
		b.WriteString("## Transaction Categorization Model\n")
		fmt.Fprintf(&b, "- **Accuracy**: %.3f\n", cat.Overall.Accuracy)
		fmt.Fprintf(&b, "- **Precision**: %.3f\n", cat.Overall.Precision)
		fmt.Fprintf(&b, "- **Recall**: %.3f\n", cat.Overall.Recall)
		fmt.Fprintf(&b, "- **F1 Score**: %.3f\n", cat.Overall.F1)
		fmt.Fprintf(&b, "- **Test Data Size**: %d transactions\n", cat.TestRows)
		fmt.Fprintf(&b, "- **Categories**: %d\n\n", cat.UniqueCategories)
	}

	if pred != nil && pred.Err == "" {
		b.WriteString("## Spending Prediction Model\n")
		fmt.Fprintf(&b, "- **RMSE**: %.2f\n", pred.Metrics.RMSE)
		fmt.Fprintf(&b, "- **MAE**: %.2f\n", pred.Metrics.MAE)
		fmt.Fprintf(&b, "- **R2 Score**: %.3f\n", pred.Metrics.R2)
		fmt.Fprintf(&b, "- **MAPE**: %.1f%%\n", pred.Metrics.MAPE)
		if pred.ModelUsed != "" {
			fmt.Fprintf(&b, "- **Model**: %s\n", pred.ModelUsed)
		}
		b.WriteString("\n")
	}

	if rec != nil && rec.Err == "" {
		b.WriteString("## Budget Recommendation Engine\n")
		fmt.Fprintf(&b, "- **Success Rate**: %.2f\n", rec.Overall.SuccessRate)
		fmt.Fprintf(&b, "- **Users Evaluated**: %d\n", rec.Overall.UsersEvaluated)
		fmt.Fprintf(&b, "- **Clusters Created**: %d\n\n", rec.Overall.ClustersCreated)
	}

	return b.String()
}
