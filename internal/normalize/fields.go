package normalize

// Candidate keys per entity, in lookup order. The first key holding a usable
// value wins.
var (
	envelopeKeys   = []string{"data", "Data", "items", "Items"}
	paginationKeys = []string{"pagination", "Pagination", "meta", "Meta"}

	metaTotalItemsKeys = []string{"totalItems", "TotalItems", "total", "Total"}
	metaTotalPagesKeys = []string{"totalPages", "TotalPages"}
	metaHasNextKeys    = []string{"hasNext", "HasNext"}
)

var (
	transactionIDKeys           = []string{"id", "Id", "ID", "transacaoId", "transacao_id"}
	transactionAmountKeys       = []string{"valor", "Valor", "value"}
	transactionDescriptionKeys  = []string{"descricao", "Descricao", "description"}
	transactionKindKeys         = []string{"tipo", "Tipo", "type"}
	transactionTagKeys          = []string{"tags", "Tags", "tagNomes"}
	transactionDateKeys         = []string{"createdAt", "dataTransacao", "DataTransacao", "data", "Data", "created_at", "date"}
	transactionCategoryKeys     = []string{"categoria", "Categoria"}
	transactionCategoryIDKeys   = []string{"categoriaId", "CategoriaId"}
	transactionCategoryNameKeys = []string{"categoriaNome", "CategoriaNome"}
	transactionCurrencyKeys     = []string{"moeda", "Moeda", "currency"}
)

var (
	entityIDKeys   = []string{"id", "Id", "ID"}
	entityNameKeys = []string{"nome", "Nome", "name", "Name"}
)

var (
	summaryAccountKeys             = []string{"contaId", "ContaId"}
	summaryMonthKeys               = []string{"mes", "Mes"}
	summaryYearKeys                = []string{"ano", "Ano"}
	summaryIncomeKeys              = []string{"totalEntradas", "TotalEntradas"}
	summaryExpenseKeys             = []string{"totalSaidas", "TotalSaidas"}
	summaryMonthBalanceKeys        = []string{"saldoMes", "SaldoMes"}
	summaryRecurringIncomeKeys     = []string{"totalRecorrenteEntrada", "TotalRecorrenteEntrada"}
	summaryRecurringExpenseKeys    = []string{"totalRecorrenteSaida", "TotalRecorrenteSaida"}
	summarySubscriptionExpenseKeys = []string{"totalAssinaturasSaida", "TotalAssinaturasSaida"}
	summaryCurrencyKeys            = []string{"moeda", "Moeda"}
)

var (
	analysisAverageKeys      = []string{"media", "Media"}
	averageLimitKeys         = []string{"mediaLimite", "MediaLimite"}
	averageSpentKeys         = []string{"mediaGasto", "MediaGasto"}
	averageUsageKeys         = []string{"mediaUsoPercentual", "MediaUsoPercentual"}
	analysisUsageKeys        = []string{"orcamentosUsoPercentual", "OrcamentosUsoPercentual"}
	analysisDistributionKeys = []string{"distribuicaoPizza", "DistribuicaoPizza"}
	distributionTotalKeys    = []string{"totalGastos", "TotalGastos"}
	distributionItemsKeys    = []string{"itens", "Itens"}

	budgetIDKeys           = []string{"orcamentoId", "OrcamentoId", "id", "Id"}
	budgetCategoryIDKeys   = []string{"categoriaId", "CategoriaId"}
	budgetCategoryNameKeys = []string{"categoriaNome", "CategoriaNome"}
	budgetLimitKeys        = []string{"limite", "Limite"}
	budgetSpentKeys        = []string{"gasto", "Gasto"}
	budgetRatioKeys        = []string{"percentualUso", "PercentualUso"}

	distributionItemTotalKeys   = []string{"total", "Total"}
	distributionItemPercentKeys = []string{"percentual", "Percentual"}

	statusPercentKeys = []string{"percentualUtilizado", "PercentualUtilizado", "percentual", "Percentual", "percentualUso", "PercentualUso"}
	statusLimitKeys   = []string{"limiteTotal", "LimiteTotal", "limite", "Limite"}
	statusSpentKeys   = []string{"gastoTotal", "GastoTotal", "gasto", "Gasto"}
)

var (
	goalNameKeys       = []string{"nome", "Nome", "name"}
	goalTargetKeys     = []string{"valorAlvo", "ValorAlvo"}
	goalCurrentKeys    = []string{"valorAtual", "ValorAtual"}
	goalStartKeys      = []string{"dataInicio", "DataInicio"}
	goalEndKeys        = []string{"dataFim", "DataFim"}
	goalCategoryKeys   = []string{"categoria", "Categoria"}
	goalCategoryIDKeys = []string{"categoriaId", "CategoriaId"}

	recurrenceFrequencyKeys = []string{"frequencia", "Frequencia"}
	recurrenceStartKeys     = []string{"dataInicio", "DataInicio"}
	recurrenceNextKeys      = []string{"proximaExecucao", "ProximaExecucao"}
	subscriptionNextKeys    = []string{"proximaCobranca", "ProximaCobranca"}

	insightsKeys = []string{"insights", "mensagens", "mensagem", "message", "texto"}
)
