package extract

type skill struct {
	canonical string
	aliases   []string
}

// skillTable maps canonical skill names to the lowercase spellings that
// count as a mention.
var skillTable = []skill{
	{"python", []string{"python", "py"}},
	{"java", []string{"java"}},
	{"javascript", []string{"javascript", "js", "node.js", "nodejs"}},
	{"typescript", []string{"typescript", "ts"}},
	{"react", []string{"react", "reactjs", "react.js"}},
	{"angular", []string{"angular", "angularjs"}},
	{"vue", []string{"vue", "vuejs", "vue.js"}},
	{"node", []string{"node", "nodejs", "node.js"}},
	{"go", []string{"golang", "go"}},
	{"c++", []string{"c++", "cpp", "cplusplus"}},
	{"c#", []string{"c#", "csharp", "c-sharp"}},
	{"aws", []string{"aws", "amazon web services"}},
	{"azure", []string{"azure", "microsoft azure"}},
	{"gcp", []string{"gcp", "google cloud", "google cloud platform"}},
	{"docker", []string{"docker", "containerization"}},
	{"kubernetes", []string{"kubernetes", "k8s"}},
	{"sql", []string{"sql", "mysql", "postgresql", "postgres", "sqlite"}},
	{"nosql", []string{"nosql", "mongodb", "mongo", "cassandra", "dynamodb"}},
	{"redis", []string{"redis"}},
	{"html", []string{"html", "html5"}},
	{"css", []string{"css", "css3", "scss", "sass"}},
	{"php", []string{"php"}},
	{"ruby", []string{"ruby", "ruby on rails", "rails"}},
	{"scala", []string{"scala"}},
	{"kotlin", []string{"kotlin"}},
	{"swift", []string{"swift"}},
	{"tensorflow", []string{"tensorflow", "tf"}},
	{"pytorch", []string{"pytorch", "torch"}},
	{"machine learning", []string{"machine learning", "ml", "artificial intelligence", "ai"}},
	{"django", []string{"django"}},
	{"flask", []string{"flask"}},
	{"spring", []string{"spring", "spring boot"}},
	{"express", []string{"express", "expressjs", "express.js"}},
	{"fastapi", []string{"fastapi"}},
	{"git", []string{"git", "github", "gitlab", "bitbucket"}},
	{"jenkins", []string{"jenkins", "ci/cd"}},
	{"terraform", []string{"terraform"}},
	{"ansible", []string{"ansible"}},
	{"helm", []string{"helm"}},
	{"spark", []string{"spark", "apache spark"}},
	{"kafka", []string{"kafka", "apache kafka"}},
	{"elasticsearch", []string{"elasticsearch", "elastic search"}},
	{"grafana", []string{"grafana"}},
	{"prometheus", []string{"prometheus"}},
	{"rest", []string{"rest", "restful", "rest api", "api"}},
	{"graphql", []string{"graphql"}},
	{"microservices", []string{"microservices", "microservice"}},
	{"devops", []string{"devops", "dev ops"}},
	{"agile", []string{"agile", "scrum", "kanban"}},
	{"jira", []string{"jira"}},
}
