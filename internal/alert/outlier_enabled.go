//go:build !noml

package alert

// Linking the outlier package registers the isolation_forest, knn, ecod,
// and copod detector kinds. Build with -tags noml to omit them.
import _ "github.com/HerbHall/driftwatch/pkg/detect/outlier"
