package naming

import "fmt"

// Every remote resource is found again only by these names, so the
// suffixes here must never change once a deployment exists.

const DefaultEnv = "preview"

func Deployment(repo, uniqueID, env string) string {
	if env == "" {
		env = DefaultEnv
	}
	return fmt.Sprintf("%s-%s-%s", repo, uniqueID, env)
}

func Network(deployment string) string {
	return deployment
}

func KeyPair(deployment string) string {
	return fmt.Sprintf("%s-key", deployment)
}

func WebVM(deployment string) string {
	return fmt.Sprintf("%s-web", deployment)
}

func WorkerVM(deployment string, index int) string {
	return fmt.Sprintf("%s-worker-%d", deployment, index)
}

func DBVM(deployment string) string {
	return fmt.Sprintf("%s-db", deployment)
}

func BlobVolume(deployment string) string {
	return fmt.Sprintf("%s-blob", deployment)
}

func DBVolume(deployment string) string {
	return fmt.Sprintf("%s-dbdata", deployment)
}
