package analyzer

import "strings"

const (
	analysisSystemPrompt = "你是一位专业的金融分析师，擅长分析新闻对股票的潜在影响。"

	stockInfoSystemPrompt = "你是一个专业的金融分析助手，擅长从文章中提取股票相关信息。比如股票的symbol, 公司的名称. " +
		"如果能够解析出多个symbol和company, 那么你只返回一个最相关的就可以了. 不用是数组的形式."

	analysisPromptTemplate = `请分析以下新闻对{stock_name}({stock_symbol})股票的潜在影响是正面、中性还是负面。

新闻内容：
{news_content}

分析时请考虑以下几个方面：

1. 新闻的核心事件是什么？（例如：新产品发布、财务业绩、管理层变动、行业法规变化、收购合并、诉讼、宏观经济因素等）
2. 该事件对公司的短期和长期财务表现可能产生什么直接或间接的影响？（例如：收入、利润、市场份额、成本、增长潜力等）
3. 该事件在多大程度上符合或超出市场预期？
4. 该事件是否反映了公司基本面的重大变化？
5. 该事件在行业内的普遍性如何？是否会对竞争格局产生影响？
6. 投资者和市场分析师可能会如何解读这则新闻？
7. 是否存在任何可能减弱或放大该新闻影响的因素？（例如：公司之前的声誉、整体市场情绪、事件的确定性等）

请按以下格式回答：
摘要：[新闻摘要，不超过200字]
影响：[好/中立/坏]`

	stockInfoPromptTemplate = `请从以下文章中提取股票代码和公司名称。
如果文章中没有明确提到股票代码或公司名称，请尽量根据上下文推断。
如果实在无法确定，请返回空字符串。

文章标题：{article_title}

文章内容：
{article_content}

请以JSON格式返回结果，格式如下：
{
  "symbol": "股票代码，例如AAPL",
  "company": "公司名称，例如Apple Inc."
}
注意：股票代码有可能以NYSE:、NASDAQ:等格式出现，请只提取冒号后面的代码部分。比如NYSE:SMRT, 股票代码就是SMRT`
)

func analysisPrompt(stockName, stockSymbol, content string) string {
	return strings.NewReplacer(
		"{stock_name}", stockName,
		"{stock_symbol}", stockSymbol,
		"{news_content}", content,
	).Replace(analysisPromptTemplate)
}

func stockInfoPrompt(title, content string) string {
	return strings.NewReplacer(
		"{article_title}", title,
		"{article_content}", content,
	).Replace(stockInfoPromptTemplate)
}
