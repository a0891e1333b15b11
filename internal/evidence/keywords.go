package evidence

var leadershipKeywords = []string{
	"led", "managed", "supervised", "coordinated", "oversaw", "directed",
	"team lead", "project lead", "leadership", "management", "supervision",
	"coordinated team", "managed team", "led team", "oversaw project",
	"team management", "project management", "people management",
	"student leader", "club president", "committee chair", "president",
	"vice president", "treasurer", "secretary", "chair", "coordinator",
}

var researchKeywords = []string{
	"research", "investigation", "study", "analysis", "experiment",
	"thesis", "dissertation", "capstone", "independent study",
	"research project", "data analysis", "statistical analysis",
	"methodology", "hypothesis", "scholarly", "academic research", "empirical study",
}

var publicationKeywords = []string{
	"published", "publication", "paper", "journal", "conference",
	"article", "thesis", "dissertation", "presentation", "poster",
	"academic paper", "research paper", "technical paper",
	"conference paper", "journal article", "peer-reviewed",
	"citation", "bibliography", "references",
}

var awardKeywords = []string{
	"award", "recognition", "honor", "achievement", "excellence",
	"dean's list", "scholarship", "fellowship", "grant",
	"competition winner", "award-winning", "recognized",
	"honored", "distinguished", "outstanding", "merit",
	"academic excellence", "achievement award",
}
